package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"gapview/bus"
	"gapview/compositor"
	"gapview/config"
	"gapview/server"
	"gapview/source"
	"gapview/task"
	"gapview/viewer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func main() {
	cfgPath := flag.String("config", "conf/config.ini", "配置文件路径")
	load := flag.String("load", "", "启动后加载的数据文件，synthetic: 前缀使用合成数据")
	demo := flag.String("demo", "", "将一份合成数据写入该 netCDF 文件后退出")
	flag.Parse()

	cfg := config.Load(*cfgPath)
	cfg.SetupLog()

	if *demo != "" {
		arr, err := source.DefaultSynthetic.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err = source.WriteNetCDF(*demo, cfg.Compositor.Variable, arr); err != nil {
			log.Fatal(err)
		}
		log.WithFields(log.Fields{"path": *demo, "shape": arr.Shape}).Info("synthetic data written")
		return
	}

	palette, err := compositor.PaletteFromConfig(cfg.Fluids)
	if err != nil {
		log.Fatal("fluid palette: ", err)
	}
	settings, err := viewer.SettingsFromConfig(cfg)
	if err != nil {
		log.Fatal("settings: ", err)
	}

	b := bus.New(256)
	sup := task.NewSupervisor(b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	src := &source.Router{
		Default: source.NetCDF{Variable: cfg.Compositor.Variable},
		Schemes: map[string]source.Reader{"synthetic": source.DefaultSynthetic},
	}
	v := viewer.New(settings, src, compositor.New(palette, b), sup, b)
	if *load != "" {
		if _, err := v.Load(*load); err != nil {
			log.WithField("path", *load).Error(err)
		}
	}

	upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	s := server.NewServer(cfg.Server.Addr, upgrader, v, b, sup)
	s.SetInterval(time.Duration(cfg.Animation.Interval) * time.Millisecond)
	s.EnableMetrics(cfg.Server.Metrics)
	if err := s.Serve(); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}
