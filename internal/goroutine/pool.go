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

// Package goroutine bounds the number of live per-connection goroutines
// behind a single ants.Pool, matching server.go's
// goroutine.Go(func() { c.listen() }) call site.
package goroutine

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

var (
	mu   sync.Mutex
	pool *ants.Pool
)

// DefaultCapacity bounds the number of concurrently running connection
// handlers when Init is never called.
const DefaultCapacity = 10000

// Init sizes the shared pool. Safe to call once at startup; a second
// call releases the previous pool and installs a new one.
func Init(capacity int) error {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		pool.Release()
	}
	p, err := ants.NewPool(capacity, ants.WithNonblocking(false))
	if err != nil {
		return err
	}
	pool = p
	return nil
}

func get() *ants.Pool {
	mu.Lock()
	defer mu.Unlock()
	if pool == nil {
		p, err := ants.NewPool(DefaultCapacity, ants.WithNonblocking(false))
		if err != nil {
			panic(err)
		}
		pool = p
	}
	return pool
}

// Go submits task to the shared pool, blocking until a worker is free.
// If the pool cannot accept the task (e.g. it was released), task runs
// on a plain goroutine as a fallback so a connection is never dropped
// silently.
func Go(task func()) {
	p := get()
	if err := p.Submit(task); err != nil {
		go task()
	}
}
