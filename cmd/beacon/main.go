/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yunqi/beacon/config"
	"github.com/yunqi/beacon/internal/goroutine"
	"github.com/yunqi/beacon/internal/server"
	"github.com/yunqi/beacon/internal/xlog"
	"github.com/yunqi/beacon/internal/xtrace"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the broker's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	xlog.Init(xlog.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log := xlog.LoggerModule("main")

	if err := xtrace.Init(xtrace.Options{
		Exporter:    xtrace.Exporter(cfg.Trace.Exporter),
		Endpoint:    cfg.Trace.Endpoint,
		ServiceName: "beacon",
	}); err != nil {
		log.Panic("trace init", zap.Error(err))
	}

	if err := goroutine.Init(goroutine.DefaultCapacity); err != nil {
		log.Panic("goroutine pool init", zap.Error(err))
	}

	listen := fmt.Sprintf("%s:%d", cfg.Mqtt.Host, cfg.Mqtt.Port)
	s := server.NewServer(
		server.WithTcpListen(listen),
		server.WithPersistence(&cfg.Persistence),
	)

	log.Info("broker starting", zap.String("listen", listen))
	if err := s.Run(); err != nil {
		log.Panic("server run", zap.Error(err))
	}
}
