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

package server

import (
	"context"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yunqi/beacon/config"
	"github.com/yunqi/beacon/internal/auth"
	"github.com/yunqi/beacon/internal/broker"
	"github.com/yunqi/beacon/internal/goroutine"
	"github.com/yunqi/beacon/internal/session"
	"github.com/yunqi/beacon/internal/xlog"
	"github.com/yunqi/beacon/internal/xtrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	Server interface {
		Stop(ctx context.Context) error
		Run() error
	}
	Option func(server *Options)

	Options struct {
		tcpListen   string
		persistence *config.Persistence
		verifier    auth.Verifier
		authorizer  auth.Authorizer
	}
	server struct {
		tcpListen   string
		tcpListener net.Listener
		broker      *broker.Broker
		log         *xlog.Log
		tracer      trace.Tracer
	}
)

func WithTcpListen(tcpListen string) Option {
	return func(opts *Options) {
		opts.tcpListen = tcpListen
	}
}

func WithPersistence(persistence *config.Persistence) Option {
	return func(opts *Options) {
		opts.persistence = persistence
	}
}

// WithAuth enables CONNECT credential verification and per-topic
// authorization. Omitting this option leaves auth disabled, matching
// the source's default.
func WithAuth(verifier auth.Verifier, authorizer auth.Authorizer) Option {
	return func(opts *Options) {
		opts.verifier = verifier
		opts.authorizer = authorizer
	}
}

func NewServer(opts ...Option) *server {
	options := loadServerOptions(opts...)
	s := &server{}
	s.init(options)
	s.log = xlog.LoggerModule("server")
	return s
}

func loadServerOptions(opts ...Option) *Options {
	options := new(Options)
	for _, opt := range opts {
		opt(options)
	}
	if options.tcpListen == "" {
		options.tcpListen = "127.0.0.1:1884"
	}
	return options
}

// Run starts the TCP accept loop and blocks until it returns (normally
// only on listener close).
func (s *server) Run() error {
	s.ServeTCP()
	return nil
}

// Stop closes the listener, unblocking Run.
func (s *server) Stop(ctx context.Context) error {
	return s.tcpListener.Close()
}

func (s *server) ServeTCP() {
	s.tracer = otel.GetTracerProvider().Tracer(xtrace.Name)

	defer func() {
		err := s.tcpListener.Close()
		if err != nil {
			s.log.Error("tcpListener close", zap.Error(err))
		}
	}()
	var tempDelay time.Duration

	for {
		accept, err := s.tcpListener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return
		}

		c := newClient(s, accept)
		goroutine.Go(func() {
			c.listen()
		})
	}
}

func (s *server) init(opts *Options) {
	s.tcpListen = opts.tcpListen
	s.log = xlog.LoggerModule("server")

	var sessionStore session.Store
	if opts.persistence != nil && opts.persistence.Session.Type == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.persistence.Session.RedisAddr})
		sessionStore = session.NewRedisStore(rdb, "beacon")
		s.log.Info("session store", zap.String("type", "redis"), zap.String("addr", opts.persistence.Session.RedisAddr))
	} else {
		sessionStore = session.NewMemoryStore()
		s.log.Info("session store", zap.String("type", "memory"))
	}

	s.broker = broker.New(broker.Options{
		Sessions:   sessionStore,
		Verifier:   opts.verifier,
		Authorizer: opts.authorizer,
	})
	s.log.Info("broker ready")

	ln, err := net.Listen("tcp", s.tcpListen)
	if err != nil {
		s.log.Panic("start tcp error", zap.String("tcp", s.tcpListen), zap.Error(err))
	}
	s.log.Info("start tcp", zap.String("TCP", s.tcpListen))
	s.tcpListener = ln
}
