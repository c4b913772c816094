/*
Copyright 2024 Talaka Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/talaka/disburse"
	"github.com/talaka/disburse/config"
	redis_db "github.com/talaka/disburse/internal/redis-db"
)

// initializeQueues builds the queue-to-priority map the worker server drains.
// The status queue carries the engine's core reconciliation traffic and gets
// the highest priority; notification delivery runs behind it, and the sharded
// instruction queues only matter when the simulator is standing in for a real
// provider.
func initializeQueues(cfg *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[cfg.Queue.StatusQueue] = 3
	queues[cfg.Queue.NotificationQueue] = 2

	if cfg.Simulator.Enabled {
		for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
			queueName := fmt.Sprintf("%s_%d", cfg.Queue.InstructionQueue, i)
			queues[queueName] = 1
		}
	}
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: conf.Queue.WorkerConcurrency,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(d *disburseInstance, mux *asynq.ServeMux) {
	cfg := d.cnf

	mux.HandleFunc(cfg.Queue.StatusQueue, d.disburse.ProcessStatusMessage)
	mux.HandleFunc(cfg.Queue.NotificationQueue, disburse.ProcessNotification)

	if cfg.Simulator.Enabled {
		simulator := disburse.NewSimulator(
			d.disburse.Queue(),
			*cfg.Simulator.SuccessRate,
			time.Duration(cfg.Simulator.MinDelayMs)*time.Millisecond,
			time.Duration(cfg.Simulator.MaxDelayMs)*time.Millisecond,
		)
		for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
			queueName := fmt.Sprintf("%s_%d", cfg.Queue.InstructionQueue, i)
			mux.HandleFunc(queueName, simulator.HandleOutcomeRequest)
		}
	}
}

// workerCommands returns the Cobra command that starts the queue workers.
func workerCommands(d *disburseInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start the queue workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error fetching config: %v", err)
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatalf("Error initializing worker server: %v", err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(d, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("Error running worker server: %v", err)
			}
		},
	}
	return cmd
}
