package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
)

func TestAsynqOptSharesServer(t *testing.T) {
	opt := AsynqOpt(config.RedisConfig{Host: "redis", Port: 6380, Password: "pw", DB: 0}, 3)

	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 3, opt.DB)
}

func TestPingerReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	assert.Error(t, Pinger{Client: client}.PingContext(context.Background()))
}
