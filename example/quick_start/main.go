package main

import (
	"fmt"

	"github.com/nyan233/retlock"
)

func main() {
	l := retlock.NewSplitLock(nil)

	// lock & unlock manually
	l.Lock()
	fmt.Println("in the critical section")
	l.Unlock()

	// recursive
	l.Lock()
	l.Lock()
	fmt.Println("two levels deep")
	l.Unlock()
	l.Unlock()

	// scoped
	retlock.With(l, func() {
		fmt.Println("scoped critical section")
	})

	// scoped, recursive
	defer retlock.Guard(l)()
	retlock.With(l, func() {
		fmt.Println("still the same holder")
	})
}
