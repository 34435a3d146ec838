package server

import (
	"dealfeed/internal/affiliate"
	"dealfeed/internal/dealstore"
	"dealfeed/internal/points"
	"dealfeed/internal/ratelimit"
	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

type Server struct {
	Store         *dealstore.FileStore
	Affiliates    affiliate.Resolver
	Limiter       ratelimit.Limiter
	Duplicates    ratelimit.Window
	Points        points.Awarder
	Validate      *validator.Validate
	Logger        logger
	AuthSecretKey jwk.Key
	AdminKeyHash  []byte
	ApprovePoints int
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}
