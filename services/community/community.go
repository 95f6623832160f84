package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/backend"
	"github.com/harman-mundh/localcommunity/core/backend/kss"
	"github.com/harman-mundh/localcommunity/core/csql"
	"github.com/harman-mundh/localcommunity/core/events"
	"github.com/harman-mundh/localcommunity/core/geocoding"
	"github.com/harman-mundh/localcommunity/core/logger"
	"github.com/harman-mundh/localcommunity/core/registry"
	"github.com/harman-mundh/localcommunity/core/store"
	"github.com/harman-mundh/localcommunity/core/weather"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
type Service struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema           string `env:"POSTGRES_SCHEMA,default=community" description:"the database schema all tables live in"`
	Port             int    `env:"PORT,default=3000" description:"the port the service listens on"`
	PublicURL        string `env:"PUBLIC_URL,default=http://localhost:3000" description:"the public URL of the service"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"the log level, one of trace, debug, info, warn, error"`
	SecretKey        string `env:"SECRET_KEY,required" description:"the secret which signs the tokens"`

	AdminUsername string `env:"ADMIN_USERNAME,optional" description:"an admin account created on startup if missing"`
	AdminEmail    string `env:"ADMIN_EMAIL,optional" description:"email of the startup admin account"`
	AdminPassword string `env:"ADMIN_PASSWORD,optional" description:"password of the startup admin account"`

	GmapsAPIKey        string `env:"GMAPS_API_KEY,optional" description:"Google Maps key for reverse geocoding"`
	WeatherAPIKey      string `env:"WEATHER_API_KEY,optional" description:"AccuWeather key, enables the weather route"`
	WeatherLocationKey string `env:"WEATHER_LOCATION_KEY,default=328328" description:"AccuWeather location of the community"`
	WeatherCache       string `env:"WEATHER_CACHE,default=registry" description:"where forecasts are cached: registry, redis or memory"`
	WeatherRefresh     string `env:"WEATHER_REFRESH,default=0 5 * * *" description:"cron schedule of the forecast refresh, empty to disable"`
	RedisURL           string `env:"REDIS_URL,optional" description:"redis URL for WEATHER_CACHE=redis"`

	KssDriver    string `env:"KSS_DRIVER,optional" description:"the upload store, Local or AWSS3. Uploads are disabled without it"`
	KssBasePath  string `env:"KSS_BASE_PATH,default=./uploads" description:"directory of the Local upload store"`
	AWSRegion    string `env:"AWS_REGION,optional" description:"AWS region of the S3 bucket"`
	AWSBucket    string `env:"AWS_BUCKET,optional" description:"S3 bucket of the upload store"`
	AWSAccessID  string `env:"AWS_ACCESS_ID,optional" description:"AWS access key ID"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY,optional" description:"AWS secret access key"`

	KafkaBrokers string `env:"KAFKA_BROKERS,optional" description:"comma separated kafka brokers. Events are logged without it"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=community-events" description:"the topic domain events are written to"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()

	tokens := access.NewTokens(service.SecretKey)

	publisher := events.Publisher(events.LogPublisher{})
	if service.KafkaBrokers != "" {
		publisher = events.NewKafkaPublisher(strings.Split(service.KafkaBrokers, ","), service.KafkaTopic)
	}
	defer publisher.Close()

	builder := &backend.Builder{
		DB:           db,
		Router:       mux.NewRouter(),
		UpdateSchema: true,
		Tokens:       tokens,
		Publisher:    publisher,
	}

	if service.GmapsAPIKey != "" {
		builder.Geocoder = geocoding.New(service.GmapsAPIKey)
	} else {
		rlog.Warnln("GMAPS_API_KEY not set, geocoding is disabled")
	}

	if service.KssDriver != "" {
		builder.KssDriver, err = kss.New(ctx, kss.Configuration{
			DriverType:         kss.DriverType(service.KssDriver),
			LocalConfiguration: &kss.LocalConfiguration{BasePath: service.KssBasePath},
			S3Configuration: &kss.S3Configuration{
				AWSRegion:     service.AWSRegion,
				AWSBucketName: service.AWSBucket,
				AccessID:      service.AWSAccessID,
				AccessKey:     service.AWSAccessKey,
				KeyPrefix:     "images/",
			},
		})
		if err != nil {
			rlog.WithError(err).Fatalln("cannot create upload store")
		}
	}

	var scheduler *cron.Cron
	if service.WeatherAPIKey != "" {
		forecasts := &weather.Service{
			Source:      &weather.AccuWeather{APIKey: service.WeatherAPIKey},
			LocationKey: service.WeatherLocationKey,
		}
		forecasts.Cache, err = weatherCache(ctx, service, db)
		if err != nil {
			rlog.WithError(err).Fatalln("cannot create weather cache")
		}
		builder.Weather = forecasts

		if service.WeatherRefresh != "" {
			scheduler = cron.New()
			_, err = scheduler.AddFunc(service.WeatherRefresh, func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if _, err := forecasts.Refresh(ctx); err != nil {
					rlog.WithError(err).Errorln("Error 4813: scheduled weather refresh failed")
				}
			})
			if err != nil {
				rlog.WithError(err).Fatalln("invalid WEATHER_REFRESH schedule")
			}
			scheduler.Start()
		}
	} else {
		rlog.Warnln("WEATHER_API_KEY not set, weather is disabled")
	}

	backend.New(builder)

	err = access.EnsureAccounts(ctx, store.NewUserStore(db), access.BootstrapAccount{
		Username: service.AdminUsername,
		Email:    service.AdminEmail,
		Password: service.AdminPassword,
		Role:     access.RoleAdmin,
	})
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create admin account")
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(service.Port),
		Handler:           handlers.CombinedLoggingHandler(logrus.StandardLogger().Writer(), builder.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		rlog.Infof("listen on port :%d, public URL %s", service.Port, service.PublicURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rlog.WithError(err).Fatalln("server failed")
		}
	}()

	<-ctx.Done()
	rlog.Infoln("shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rlog.WithError(err).Errorln("shutdown did not complete")
	}
}

// weatherCache creates the forecast cache selected by WEATHER_CACHE
func weatherCache(ctx context.Context, service *Service, db *csql.DB) (weather.Cache, error) {
	switch service.WeatherCache {
	case "redis":
		options, err := redis.ParseURL(service.RedisURL)
		if err != nil {
			return nil, err
		}
		return weather.NewRedisCache(redis.NewClient(options), weather.DefaultMaxAge), nil
	case "memory":
		return weather.NewMemoryCache(16, weather.DefaultMaxAge), nil
	case "registry":
		r, err := registry.New(ctx, db)
		if err != nil {
			return nil, err
		}
		return weather.NewRegistryCache(r), nil
	}
	return nil, errors.New("unknown weather cache " + service.WeatherCache)
}
