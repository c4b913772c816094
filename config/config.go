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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"DISBURSE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"DISBURSE_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"DISBURSE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"DISBURSE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"DISBURSE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"DISBURSE_REDIS_SKIP_TLS_VERIFY"`
}

// QueueConfig names the asynq queues the engine runs on. Instruction queues
// are sharded 1..NumberOfQueues; status and notification queues are single.
type QueueConfig struct {
	InstructionQueue  string `json:"instruction_queue" envconfig:"DISBURSE_QUEUE_INSTRUCTION"`
	StatusQueue       string `json:"status_queue" envconfig:"DISBURSE_QUEUE_STATUS"`
	NotificationQueue string `json:"notification_queue" envconfig:"DISBURSE_QUEUE_NOTIFICATION"`
	NumberOfQueues    int    `json:"number_of_queues" envconfig:"DISBURSE_NUMBER_OF_QUEUES"`
	WorkerConcurrency int    `json:"worker_concurrency" envconfig:"DISBURSE_WORKER_CONCURRENCY"`
	MaxRetryAttempts  int    `json:"max_retry_attempts" envconfig:"DISBURSE_QUEUE_MAX_RETRY"`
}

// SimulatorConfig drives the mock disbursement provider: every outcome
// request is answered after a uniform delay in [MinDelayMs, MaxDelayMs] with
// SUCCESS at probability SuccessRate. SuccessRate is a pointer so that an
// explicit 0 (an always-failing provider) survives defaulting.
type SimulatorConfig struct {
	Enabled     bool     `json:"enabled" envconfig:"DISBURSE_SIMULATOR_ENABLED"`
	SuccessRate *float64 `json:"success_rate" envconfig:"DISBURSE_SIMULATOR_SUCCESS_RATE"`
	MinDelayMs  int      `json:"min_delay_ms" envconfig:"DISBURSE_SIMULATOR_MIN_DELAY_MS"`
	MaxDelayMs  int      `json:"max_delay_ms" envconfig:"DISBURSE_SIMULATOR_MAX_DELAY_MS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

// Notification holds the downstream sink for typed business events and the
// Slack channel for operational errors.
type Notification struct {
	Slack SlackWebhook `json:"slack"`
	Sink  struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"sink"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"DISBURSE_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Simulator    SimulatorConfig  `json:"simulator"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("disburse", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called disburse.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Disburse Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.InstructionQueue == "" {
		cnf.Queue.InstructionQueue = "new:instruction"
	}
	if cnf.Queue.StatusQueue == "" {
		cnf.Queue.StatusQueue = "new:status"
	}
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 4
	}
	if cnf.Queue.WorkerConcurrency <= 0 {
		cnf.Queue.WorkerConcurrency = 10
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}

	// Simulator defaults mirror the reference provider: 85% success,
	// 50-200ms resolution delay. An explicit rate of 0 is kept as configured.
	if cnf.Simulator.SuccessRate == nil {
		rate := 0.85
		cnf.Simulator.SuccessRate = &rate
	}
	if *cnf.Simulator.SuccessRate < 0 || *cnf.Simulator.SuccessRate > 1 {
		return errors.New("simulator success rate must be between 0 and 1")
	}
	if cnf.Simulator.MinDelayMs <= 0 {
		cnf.Simulator.MinDelayMs = 50
	}
	if cnf.Simulator.MaxDelayMs <= cnf.Simulator.MinDelayMs {
		cnf.Simulator.MaxDelayMs = cnf.Simulator.MinDelayMs + 150
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
