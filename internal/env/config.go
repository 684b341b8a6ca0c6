package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DotEnvFile is loaded, if present, before the environment is read.
const DotEnvFile = ".env.local"

type Config struct {
	Host     string `env:"BITCASK_HOST,default=127.0.0.1"`
	Port     int    `env:"BITCASK_PORT,default=6969"`
	HTTPPort int    `env:"BITCASK_HTTP_PORT,default=6970"`

	Timeout    time.Duration `env:"BITCASK_TIMEOUT,default=5s"`
	ReadBudget int64         `env:"BITCASK_READ_BUDGET,default=1048576"`

	FramedReplies bool   `env:"BITCASK_FRAMED_REPLIES"`
	SnapshotPath  string `env:"BITCASK_SNAPSHOT_PATH"`

	LogLevel  string `env:"BITCASK_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"BITCASK_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(DotEnvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
