package app

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/cors"
	"github.com/shandysiswandi/gotp/internal/pkg/clock"
	"github.com/shandysiswandi/gotp/internal/pkg/config"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/hash"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/jwt"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/router"
	"github.com/shandysiswandi/gotp/internal/pkg/secretbox"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/validator"
)

// fatal logs a wiring failure and exits. Wiring happens once at startup, so
// there is nothing to recover to.
func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"error", err}, args...)...)
	os.Exit(1)
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() {
	cfg, err := config.NewViper(configPath())
	if err != nil {
		fatal("failed to init config", err)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // TZ is advisory
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		fatal("failed to init instrumentation", err)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	var err error

	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.token = uid.NewRandomToken(uid.DefaultTokenSize)
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.totp = otp.NewTOTP(a.config.GetString("otp.issuer"))

	if a.validator, err = validator.NewV10Validator(); err != nil {
		fatal("failed to init validation v10 validator", err)
	}
	if a.uid, err = uid.NewSnowflake(a.config.GetInt64("uid.node_id")); err != nil {
		fatal("failed to init uid number snowflake", err)
	}

	a.initHash()
	a.initEncryptor()
}

// initHash derives one digest key per purpose so sync digests and response
// tokens can never be confused for each other.
func (a *App) initHash() {
	master, err := hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	if err != nil {
		fatal("failed to init hmac", err)
	}

	for name, dst := range map[string]*hash.Hash{
		"mfa.totp.sync":          &a.syncHash,
		"mfa.challenge.response": &a.responseHash,
	} {
		if *dst, err = master.Named(name); err != nil {
			fatal("failed to derive hmac", err, "name", name)
		}
	}
}

// initEncryptor builds the factor secret keyring: mfa.secret seals under
// mfa.key_version, and mfa.retired_secrets ("version:base64,...") stay
// readable until every factor is re-sealed.
func (a *App) initEncryptor() {
	current := max(a.config.GetUint16("mfa.key_version"), 1)

	key, err := base64.StdEncoding.DecodeString(a.config.GetString("mfa.secret"))
	if err != nil {
		fatal("failed to decode mfa secret", err)
	}
	keys := map[uint16][]byte{current: key}

	for v, encoded := range a.config.GetMap("mfa.retired_secrets") {
		n, err := strconv.ParseUint(v, 10, 16)
		if err == nil && n == 0 {
			err = strconv.ErrRange
		}
		if err != nil {
			fatal("failed to parse retired mfa key version", err, "version", v)
		}

		if keys[uint16(n)], err = base64.StdEncoding.DecodeString(encoded); err != nil {
			fatal("failed to decode retired mfa secret", err, "version", v)
		}
	}

	keyring, err := secretbox.NewKeyring(current, keys)
	if err != nil {
		fatal("failed to init mfa keyring", err)
	}
	a.encryptor = secretbox.NewAESGCMEncryptor(keyring)
}

func (a *App) initJWT() {
	signer, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(a.config.GetString("jwt.secret")),
		Issuer:     a.config.GetString("jwt.issuer"),
		Audiences:  a.config.GetArray("jwt.audiences"),
		TTLMinutes: a.config.GetMinute("jwt.ttl_minutes"),
		Clock:      a.clock,
		UUID:       a.uuid,
	})
	if err != nil {
		fatal("failed to init jwt token", err)
	}
	a.jwt = signer
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		// Retry-After carries the wait on 429 answers.
		ExposedHeaders:   []string{"Retry-After", router.HeaderCorrelationID},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []closer{
		{name: "Instrument", fn: a.ins.Shutdown},
		{name: "Messaging", fn: func(context.Context) error { return a.messaging.Close() }},
		{name: "Redis", fn: func(context.Context) error {
			if a.cacheConn == nil {
				return nil
			}
			return a.cacheConn.Close()
		}},
		{name: "Database", fn: func(context.Context) error {
			if a.dbConn != nil {
				a.dbConn.Close()
			}
			return nil
		}},
		{name: "Config", fn: func(context.Context) error { return a.config.Close() }},
	}
}
