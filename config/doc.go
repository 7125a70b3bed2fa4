// Package config loads authguard.toml and environment overrides.
//
// The file selects one named profile through environment.current; each
// profile carries the endpoint, role alias and certificate paths for one
// deployment:
//
//	cache_dir = "/var/cache/authguard"
//	circuit_breaker_threshold = 3
//
//	[environment]
//	current = "production"
//
//	[environment.production]
//	aws_iot_endpoint = "xxxx.credentials.iot.eu-west-1.amazonaws.com"
//	role_alias = "edge-role"
//	cert_path = "/etc/authguard/device.pem.crt"
//	key_path = "/etc/authguard/private.pem.key"
//	ca_path = "/etc/authguard/AmazonRootCA1.pem"
package config
