// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-script-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/persistence"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/workflow"
	"github.com/pkg/errors"
)

// StateManager holds everything built at startup.
type StateManager struct {
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	localStore *persistence.LocalStore
	registry   *workflow.SessionRegistry
	resync     *workflow.ScriptResyncWorkflow
	batches    *workflow.BatchRequestWorkflow
}

var state = &StateManager{}

// SetupOS points the configuration loader at ./configs and defaults the
// runtime to "local".
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the configuration once, secrets included.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		cloud.LoadSecrets(config)
		state.config = config
	}
	return state.config
}

// InitState creates the clients, stores, services and workflows.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return errors.Wrap(err, "cloud clients")
	}
	state.cloud = cloudClients

	local, err := persistence.NewLocalStore(config.LocalStore.Path)
	if err != nil {
		return errors.Wrap(err, "local store")
	}
	state.localStore = local

	var remote persistence.ScriptStore
	if cloudClients.BigQueryClient != nil {
		remote = persistence.NewRemoteStore(cloudClients.BigQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.ScriptsTable)
	}
	gateway := persistence.NewRouter(local, remote)

	optimizer, err := services.NewScriptOptimizer(cloudClients, config)
	if err != nil {
		return err
	}
	ingestion := workflow.NewScriptIngestionWorkflow(
		services.NewMediaAcquirer(config.Acquisition, nil),
		services.NewMediaArchive(cloudClients, config),
		services.NewScriptAnalyzer(cloudClients, config),
		gateway,
		nil,
	)

	state.registry = workflow.NewSessionRegistry(gateway, ingestion, optimizer, config.Batch.InterItemDelay())
	state.batches = workflow.NewBatchRequestWorkflow(state.registry)
	state.resync = workflow.NewScriptResyncWorkflow(state.registry, config.Batch.ResyncInterval())
	state.resync.StartTimer(ctx)

	SetupListeners(ctx, cloudClients)
	return nil
}

// CloseState releases the clients and the local database.
func CloseState() {
	if state.cloud != nil {
		state.cloud.Close()
	}
	if state.localStore != nil {
		_ = state.localStore.Close()
	}
}
