// Package config handles loading and validating the LWM2M server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (LWM2M_*)
//   - Validation of required fields
//   - Default value handling
//
// Optional integrations (audit database, MQTT event publishing, InfluxDB
// metrics) are switched on per section with an "enabled" flag. The CoAP
// listener and the registration settings are always required.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.CoAPAddress())
package config
