// Package config loads flowkit process configuration with viper.
//
// Values come from a YAML config file, an optional .env file and the
// process environment, in that order of increasing precedence. Files are
// looked up in the usual places (cmd/<service>/, config/, the working
// directory) unless given explicitly:
//
//	cfg, err := config.Load[config.AppConfig]("flowdemo",
//	    config.WithConfigFile("cmd/flowdemo/config.yml"))
//
// Load applies defaults and validates; LoadConfig only decodes.
package config
