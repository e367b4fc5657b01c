package config

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	VerifyConfig
	HTTPConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Verify
	HTTP
}

func New() Config {
	return mainConfig{}
}
