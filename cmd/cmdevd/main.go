/*
Cmdevd starts the campman development backend and begins listening for new
connections.

Usage:

	cmdevd [flags]
	cmdevd [flags] -l [[ADDRESS]:PORT]

Once started, the backend will listen for HTTP requests and respond to them
using REST protocol with the resources the campman console uses, all under
/api. By default, it will listen on localhost:8080. This can be changed with the
--listen/-l flag (or config via environment var). The flag argument must be
either a full address with port, such as "192.168.0.2:6001", or just the port
preceeded by a colon, such as ":6001".

If a JWT token secret is not given, one will be automatically generated. As a
consequence, in this mode of operation all tokens are rendered invalid as soon
as the backend shuts down.

On startup, an admin user is created if one with the admin email does not
already exist.

The flags are:

	-v, --version
		Give the current version of the development backend and then exit.

	-l, --listen LISTEN_ADDRESS
		Listen on the given address. Must be in BIND_ADDRESS:PORT or :PORT
		format. If not given, will default to the value of environment variable
		CAMPMAN_DEV_LISTEN_ADDRESS, and if that is not given, will default to
		localhost:8080.

	-s, --secret TOKEN_SECRET
		Use the provided secret for signing JWT tokens. If there are less than
		32 bytes in the secret, it will be repeated until it is. The maximum
		size is 64 bytes. If not given, will default to the value of environment
		variable CAMPMAN_DEV_TOKEN_SECRET. If no secret is specified, a random
		secret will be generated.

	--db DRIVER[:PARAMS]
		Use the given DB connection string. DRIVER must be one of the following:
		inmem, sqlite. inmem has no further params. sqlite needs the path to the
		data directory such as sqlite:path/to/db_dir. If not given, will default
		to the value of environment variable CAMPMAN_DEV_DATABASE, and if that
		is not given, an in-memory database is used.

	--admin-email EMAIL
		Email of the admin user created at startup. Defaults to the value of
		CAMPMAN_DEV_ADMIN_EMAIL, or admin@example.com.

	--admin-password PASSWORD
		Password of the admin user created at startup. Defaults to the value of
		CAMPMAN_DEV_ADMIN_PASSWORD. If empty, the admin must set a password on
		first login.

Environment variables may also be given in a .env file in the current
directory.
*/
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/internal/version"
	"github.com/dekarrin/campman/server"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	EnvListen        = "CAMPMAN_DEV_LISTEN_ADDRESS"
	EnvSecret        = "CAMPMAN_DEV_TOKEN_SECRET"
	EnvDB            = "CAMPMAN_DEV_DATABASE"
	EnvAdminEmail    = "CAMPMAN_DEV_ADMIN_EMAIL"
	EnvAdminPassword = "CAMPMAN_DEV_ADMIN_PASSWORD"
	EnvLogLevel      = "CAMPMAN_DEV_LOG_LEVEL"
)

const defaultAdminEmail = "admin@example.com"

var (
	flagVersion       = pflag.BoolP("version", "v", false, "Give the current version of the development backend and then exit.")
	flagListen        = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagSecret        = pflag.StringP("secret", "s", "", "Use the given secret for token generation.")
	flagDB            = pflag.String("db", "", "Use the given DB connection string.")
	flagAdminEmail    = pflag.String("admin-email", "", "Email of the admin user created at startup.")
	flagAdminPassword = pflag.String("admin-password", "", "Password of the admin user created at startup.")
	flagLogLevel      = pflag.StringP("log-level", "L", "", "Log at the given level.")
)

// setting gives the value of the named flag if it was set, and otherwise the
// value of environment variable env.
func setting(flagName string, flagVal *string, env string) string {
	if pflag.Lookup(flagName).Changed {
		return *flagVal
	}
	return os.Getenv(env)
}

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s (campman v%s)\n", version.DevServerCurrent, version.Current)
		return
	}

	if len(pflag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "Too many arguments\nDo -h for help.\n")
		os.Exit(1)
	}

	// a missing .env is fine
	_ = godotenv.Load()

	lg, err := logging.New(logging.Options{Level: setting("log-level", flagLogLevel, EnvLogLevel)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nDo -h for help.\n", err.Error())
		os.Exit(1)
	}

	// get address info
	port := 0
	addr := ""
	if listenAddr := setting("listen", flagListen, EnvListen); listenAddr != "" {
		bindParts := strings.SplitN(listenAddr, ":", 2)
		if len(bindParts) != 2 {
			fmt.Fprintf(os.Stderr, "Listen address is not in ADDRESS:PORT or :PORT format.\nDo -h for help.\n")
			os.Exit(1)
		}

		addr = bindParts[0]
		port, err = strconv.Atoi(bindParts[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%q is not a valid port number.\nDo -h for help.\n", bindParts[1])
			os.Exit(1)
		}
	}

	// assemble a server config
	cfg := server.Config{Logger: lg}

	if dbConnStr := setting("db", flagDB, EnvDB); dbConnStr != "" {
		cfg.DB, err = server.ParseDBConnString(dbConnStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\nDo -h for help.\n", err.Error())
			os.Exit(1)
		}
	}

	// get token secret
	if tokSecStr := setting("secret", flagSecret, EnvSecret); tokSecStr != "" {
		tokSecret := []byte(tokSecStr)

		for len(tokSecret) < server.MinSecretSize {
			doubledTokSecret := make([]byte, len(tokSecret)*2)
			copy(doubledTokSecret, tokSecret)
			copy(doubledTokSecret[len(tokSecret):], tokSecret)
			tokSecret = doubledTokSecret
		}

		if len(tokSecret) > server.MaxSecretSize {
			// keys would be chopped at 64, so rather than the user thinking
			// they have more security by giving a longer key, refuse to start.
			fmt.Fprintf(os.Stderr, "Token secret is %d bytes, but it must be <= %d bytes\nDo -h for help.\n", len(tokSecret), server.MaxSecretSize)
			os.Exit(1)
		}
		cfg.TokenSecret = tokSecret
	} else {
		// use all 64 possible bytes if doing a generated secret
		cfg.TokenSecret = make([]byte, server.MaxSecretSize)
		if _, err := rand.Read(cfg.TokenSecret); err != nil {
			fmt.Fprintf(os.Stderr, "Could not generate token secret: %s\n", err.Error())
			os.Exit(1)
		}

		lg.Warn("using generated token secret; all tokens issued will become invalid at shutdown")
	}

	// configuration complete, initialize the server
	srv, err := server.New(cfg)
	if err != nil {
		lg.Error("could not start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// immediately create the admin user so we have someone we can log in as.
	adminEmail := setting("admin-email", flagAdminEmail, EnvAdminEmail)
	if adminEmail == "" {
		adminEmail = defaultAdminEmail
	}
	adminPass := setting("admin-password", flagAdminPassword, EnvAdminPassword)
	created, err := srv.EnsureAdmin(ctx, adminEmail, adminPass)
	if err != nil {
		lg.Error("could not create initial admin user", "error", err)
		os.Exit(2)
	}
	if created && adminPass == "" {
		lg.Info("admin user must set a password on first login", "email", adminEmail)
	}

	// okay, now actually launch it
	lg.Info("starting development backend", "version", version.DevServerCurrent)
	if err := srv.ServeForever(ctx, addr, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
