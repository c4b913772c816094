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
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"

	"github.com/talaka/disburse/config"
	"github.com/talaka/disburse/database/mocks"
	redis_db "github.com/talaka/disburse/internal/redis-db"
	"github.com/talaka/disburse/model"
)

// mockEmitter records business event emissions.
type mockEmitter struct {
	mock.Mock
}

func (m *mockEmitter) PaymentSucceeded(ctx context.Context, instruction *model.PaymentInstruction, batch *model.PaymentBatch) error {
	args := m.Called(ctx, instruction, batch)
	return args.Error(0)
}

func (m *mockEmitter) BatchCompleted(ctx context.Context, batch *model.PaymentBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func newTestConfig(redisAddr string) *config.Configuration {
	return &config.Configuration{
		Redis: config.RedisConfig{Dns: redisAddr},
		Queue: config.QueueConfig{
			InstructionQueue:  "new:instruction",
			StatusQueue:       "new:status",
			NotificationQueue: "new:notification",
			NumberOfQueues:    2,
			WorkerConcurrency: 1,
			MaxRetryAttempts:  3,
		},
	}
}

// newTestDisburse wires a Disburse instance against miniredis, a mock
// datasource and a mock emitter.
func newTestDisburse(t *testing.T) (*Disburse, *mocks.MockDataSource, *mockEmitter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(newTestConfig(mr.Addr()))

	redisClient, err := redis_db.NewRedisClient([]string{mr.Addr()}, false)
	if err != nil {
		t.Fatalf("an error '%s' occurred when connecting to miniredis", err)
	}

	conf, err := config.Fetch()
	if err != nil {
		t.Fatalf("Error fetching config: %s", err)
	}

	mockDS := new(mocks.MockDataSource)
	emitter := new(mockEmitter)
	d := &Disburse{
		queue:      NewQueue(conf),
		redis:      redisClient.Client(),
		datasource: mockDS,
		emitter:    emitter,
	}
	return d, mockDS, emitter, mr
}
