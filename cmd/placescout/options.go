package main

import (
	"time"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/config"
)

// Options are the command line flags, interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Config   string        `short:"f" long:"config" description:"configuration YAML path"`
	Query    string        `short:"q" long:"query" description:"question to ask" default:"Tell me some facts about my location?"`
	Provider string        `long:"provider" choice:"googleai" choice:"ollama" description:"LLM provider, overrides the config file"`
	Model    string        `long:"model" description:"model name, overrides the config file"`
	Verbose  bool          `short:"v" long:"verbose" description:"debug logging"`
	Timeout  time.Duration `long:"timeout" default:"3m" description:"overall deadline for the run"`
}

// apply layers the flags over a loaded configuration.
func (o *Options) apply(cfg *config.Config) {
	if o.Provider != "" && o.Provider != cfg.LLM.Provider {
		cfg.LLM.Provider = o.Provider
		if o.Model == "" && o.Provider == config.ProviderGoogleAI {
			cfg.LLM.Model = defaultGoogleAIModel
		}
	}
	if o.Model != "" {
		cfg.LLM.Model = o.Model
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
}

func (o *Options) question() string {
	if o.Query == "" {
		return config.DefaultQuestion
	}
	return o.Query
}
