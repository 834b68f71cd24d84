// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	_ "github.com/lib/pq" // load database driver for postgres
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/account/memstore"
	"github.com/relabs-tech/labadmin/core/account/pgstore"
	"github.com/relabs-tech/labadmin/core/api"
	"github.com/relabs-tech/labadmin/core/csql"
	"github.com/relabs-tech/labadmin/core/logger"
	"github.com/relabs-tech/labadmin/core/notify"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Store             string `env:"STORE,optional,default=postgres" description:"where accounts are kept, postgres or memory"`
	Postgres          string `env:"POSTGRES,optional" description:"the connection string for the Postgres DB without password"`
	PostgresPassword  string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema            string `env:"SCHEMA,optional,default=labadmin" description:"the database schema"`
	Port              string `env:"PORT,optional,default=3000" description:"the port to listen on"`
	JwtSecret         string `env:"JWT_SECRET,optional" description:"the HMAC secret the web tokens are signed with"`
	BackdoorToken     string `env:"BACKDOOR_TOKEN,optional" description:"a bearer token which authorizes as admin. Only for development"`
	LogLevel          string `env:"LOG_LEVEL,optional,default=info" description:"The level used for logger, can be debug, warning, info, error"`
	MailTransport     string `env:"MAIL_TRANSPORT,optional,default=log" description:"how mails are sent: log, smtp or kafka"`
	MailFrom          string `env:"MAIL_FROM,optional,default=labadmin@localhost" description:"the sender address of notification mails"`
	MailBaseURL       string `env:"MAIL_BASE_URL,optional,default=http://localhost:3000" description:"the url of the web application used in mails"`
	SMTPHost          string `env:"SMTP_HOST,optional,default=localhost" description:"the SMTP server"`
	SMTPPort          int    `env:"SMTP_PORT,optional,default=25" description:"the SMTP port"`
	SMTPUsername      string `env:"SMTP_USERNAME,optional" description:"the SMTP user, if the server requires authentication"`
	SMTPPassword      string `env:"SMTP_PASSWORD,optional" description:"the SMTP password"`
	KafkaBrokers      string `env:"KAFKA_BROKERS,optional" description:"comma separated kafka brokers for the kafka mail transport"`
	MailTopic         string `env:"MAIL_TOPIC,optional,default=labadmin_mail" description:"the kafka topic mails are published to"`
	NotifyConcurrency int    `env:"NOTIFY_CONCURRENCY,optional,default=2" description:"number of workers sending mails"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()

	var store account.Store
	switch service.Store {
	case "memory":
		rlog.Warnln("keeping accounts in memory, they are lost on restart")
		store = memstore.New()
	case "postgres":
		if service.Postgres == "" {
			rlog.Fatalln("POSTGRES is required for the postgres store")
		}
		db := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
		defer db.Close()
		store = pgstore.New(&pgstore.Builder{DB: db, UpdateSchema: true})
	default:
		rlog.Fatalf("unknown store %s", service.Store)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var mailer notify.Mailer
	switch service.MailTransport {
	case "log":
		mailer = notify.LogMailer{}
	case "smtp":
		mailer = &notify.SMTPMailer{
			Host:     service.SMTPHost,
			Port:     service.SMTPPort,
			Username: service.SMTPUsername,
			Password: service.SMTPPassword,
		}
	case "kafka":
		if service.KafkaBrokers == "" {
			rlog.Fatalln("KAFKA_BROKERS is required for the kafka mail transport")
		}
		kafkaMailer := notify.NewKafkaMailer(strings.Split(service.KafkaBrokers, ","), service.MailTopic)
		defer kafkaMailer.Close()
		mailer = kafkaMailer
	default:
		rlog.Fatalf("unknown mail transport %s", service.MailTransport)
	}

	dispatcher, err := notify.New(&notify.Builder{
		Mailer:      mailer,
		From:        service.MailFrom,
		BaseURL:     service.MailBaseURL,
		Concurrency: service.NotifyConcurrency,
		Registerer:  registry,
	})
	if err != nil {
		panic(err)
	}
	defer dispatcher.Close()

	authorizations := access.NewAuthorizationCache()
	accounts := account.NewService(&account.Builder{Store: store, Notifier: dispatcher, Authorizations: authorizations})

	router := mux.NewRouter()
	logger.AddRequestID(router)
	// the backdoor goes first, the jwt middleware skips requests which are already authorized
	if service.BackdoorToken != "" {
		router.Use(access.NewBackdoorMiddleware(&access.BackdoorMiddlewareBuilder{
			Backdoors: map[string]access.Authorization{
				service.BackdoorToken: {Login: "admin", Roles: access.Roles{access.RoleAdmin}},
			},
		}))
	}
	if service.JwtSecret != "" {
		router.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{
			Secret: []byte(service.JwtSecret),
			Lookup: accounts.Resolver(),
			Cache:  authorizations,
		}))
	} else {
		rlog.Warnln("JWT_SECRET is not set, only the backdoor can authorize requests")
	}

	if _, err := api.New(&api.Builder{
		Router:            router,
		Service:           accounts,
		Gatherer:          registry,
		EnableCORS:        true,
		EnableCompression: true,
	}); err != nil {
		panic(err)
	}

	srv := &http.Server{
		Addr:              ":" + service.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		rlog.Infoln("listen on port", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rlog.WithError(err).Fatalln("cannot listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	rlog.Infoln("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		rlog.WithError(err).Errorln("shutdown")
	}
}
