package env_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/luma/cask/internal/env"
)

var configVars = []string{
	"BITCASK_HOST",
	"BITCASK_PORT",
	"BITCASK_TIMEOUT",
	"BITCASK_FRAMED_REPLIES",
	"BITCASK_SNAPSHOT_PATH",
}

func setenv(vars map[string]string) {
	for k, v := range vars {
		Expect(os.Setenv(k, v)).To(Succeed())
	}
}

var _ = Describe("env", func() {
	AfterEach(func() {
		for _, k := range configVars {
			os.Unsetenv(k)
		}
	})

	Describe("LoadConfig()", func() {
		It("defaults to the standard Bitcask endpoint", func() {
			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.Host).To(Equal("127.0.0.1"))
			Expect(conf.Port).To(Equal(6969))
			Expect(conf.HTTPPort).To(Equal(6970))
			Expect(conf.Timeout).To(Equal(5 * time.Second))
			Expect(conf.ReadBudget).To(Equal(int64(1024 * 1024)))
			Expect(conf.FramedReplies).To(BeFalse())
			Expect(conf.LogLevel).To(Equal("info"))
		})

		It("reads overrides from the environment", func() {
			setenv(map[string]string{
				"BITCASK_HOST":           "10.0.0.1",
				"BITCASK_PORT":           "7000",
				"BITCASK_TIMEOUT":        "250ms",
				"BITCASK_FRAMED_REPLIES": "true",
				"BITCASK_SNAPSHOT_PATH":  "/tmp/cask.json",
			})

			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.Host).To(Equal("10.0.0.1"))
			Expect(conf.Port).To(Equal(7000))
			Expect(conf.Timeout).To(Equal(250 * time.Millisecond))
			Expect(conf.FramedReplies).To(BeTrue())
			Expect(conf.SnapshotPath).To(Equal("/tmp/cask.json"))
		})

		It("fails on values of the wrong type", func() {
			setenv(map[string]string{"BITCASK_PORT": "not-a-port"})

			_, err := env.LoadConfig(context.Background())
			Expect(err).NotTo(Succeed())
		})
	})

	Describe("MakeLogger()", func() {
		It("builds a logger at the requested level", func() {
			log, err := env.MakeLogger("warn")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
			Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("chatty")
			Expect(err).NotTo(Succeed())
		})
	})
})
