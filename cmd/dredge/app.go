package main

import (
	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/config"
	"github.com/ferrovax/dredge/pkg/logging"
	"github.com/ferrovax/dredge/pkg/oracle"
	"github.com/ferrovax/dredge/pkg/pipeline"
)

// appOptions are the persistent flags shared by every command.
type appOptions struct {
	configPath string
	outRoot    string
	verbose    bool
	fast       bool
	workers    int
	model      string
}

// load reads the configuration and applies flag overrides.
func (o *appOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.outRoot != "" {
		cfg.Output.Root = o.outRoot
	}
	if o.workers > 0 {
		cfg.Analysis.MaxWorkers = o.workers
	}
	if o.model != "" {
		cfg.Oracle.Model = o.model
	}
	return cfg, logging.New(o.verbose), nil
}

// buildPipeline wires the configured pipeline. Stages that never touch
// the oracle (extract) pass needOracle false and skip credential checks.
func (o *appOptions) buildPipeline(needOracle bool) (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	var orc oracle.Oracle
	if needOracle {
		client, err := oracle.NewClient(cfg.OracleOptions(o.fast), log)
		if err != nil {
			return nil, nil, err
		}
		orc = client
	}
	return pipeline.New(cfg, orc, o.fast, log), log, nil
}
