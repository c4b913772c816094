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

package disburse

import (
	"github.com/redis/go-redis/v9"

	"github.com/talaka/disburse/config"
	"github.com/talaka/disburse/database"
	redis_db "github.com/talaka/disburse/internal/redis-db"
)

// Disburse is the main service struct wiring the engine's collaborators:
// the durable store, the task queues, the Redis client backing per-batch
// locks, and the notification emitter. All of them are constructed and passed
// in explicitly; nothing hangs off package state.
type Disburse struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	emitter    NotificationEmitter
}

// NewDisburse initializes a new Disburse instance with the provided database
// datasource, building the Redis client, queue, and notification emitter from
// the loaded configuration.
func NewDisburse(db database.IDataSource) (*Disburse, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	emitter := NewEmitter(configuration)

	newDisburse := &Disburse{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		emitter:    emitter,
	}
	return newDisburse, nil
}

// Queue exposes the task queue client, used by the workers to wire the
// simulator onto the instruction queues.
func (d *Disburse) Queue() *Queue {
	return d.queue
}
