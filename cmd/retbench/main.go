package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nyan233/retlock"
	"github.com/nyan233/retlock/pkg/logger"
	flag "github.com/spf13/pflag"
)

var (
	fileName  = flag.StringP("file", "f", "benchmark.csv", "csv文件, 结果以追加方式写入")
	threads   = flag.IntP("thread", "t", 4, "worker goroutine的数量")
	iteration = flag.IntP("recursive", "r", 8, "每次迭代的嵌套加锁次数")
	duration  = flag.IntP("duration", "d", 10, "每个配置的压测时长(秒)")
	version   = flag.BoolP("version", "v", false, "打印当前的版本号")
)

func main() {
	flag.Parse()
	if *version {
		fmt.Printf("retlock, version %s\n", retlock.Version)
		return
	}
	c := Config{
		Filename:   *fileName,
		NumThreads: *threads,
		Iteration:  *iteration,
		Duration:   time.Duration(*duration) * time.Second,
	}
	if err := run(c); err != nil {
		logger.Default.Error("benchmark failed: %v", err)
		os.Exit(1)
	}
}
