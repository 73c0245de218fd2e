package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	TypingExpiry         time.Duration `env:"TYPING_EXPIRY,default=5s"`
	BrokerTransport      string        `env:"BROKER_TRANSPORT,default=memory"`
	NatsURL              string        `env:"NATS_URL"`
	RedisAddr            string        `env:"REDIS_ADDR"`
	ConversationStoreURL string        `env:"CONVERSATION_STORE_URL,required=true"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,default=5s"`
	SendBufferSize       int           `env:"SEND_BUFFER_SIZE,default=256"`
}
