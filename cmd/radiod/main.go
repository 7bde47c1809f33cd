package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/config"
	"github.com/robotalks/radio.go/pkg/daemon"
	"github.com/robotalks/radio.go/pkg/framework"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.NewConfig()
	if err := conf.Load(); err != nil {
		glog.Exitf("config: %v", err)
	}
	d, err := daemon.New(conf, daemon.OpenUART)
	if err != nil {
		glog.Exitf("start: %v", err)
	}
	if err := framework.NewRunner().HandleSignals().Go(d).Wait(); err != nil {
		glog.Exit(err)
	}
}
