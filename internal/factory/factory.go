package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/bucketing"
	"onboarding-service/internal/client"
	"onboarding-service/internal/config"
	"onboarding-service/internal/encryption"
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/hashing"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/service"
	"onboarding-service/internal/tls"
	"onboarding-service/internal/token"
	"onboarding-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager
	tokenManager      *token.Manager

	// Repositories
	userRepository     scylla.UserRepository
	investorRepository scylla.InvestorRepository
	deviceRepository   scylla.DeviceRepository
	idcomRepository    scylla.IdcomRepository
	mpinHistoryRepo    scylla.MpinHistoryRepository
	uamRepository      scylla.UamRepository
	twoFaRepository    scylla.TwoFaRepository
	nomineeRepository  scylla.NomineeRepository
	cooldownCache      redis.OTPCooldownCache
	sessionCache       redis.SessionCache

	// Gateways and sinks
	coreBanking     gateway.CoreBanking
	idcomGateway    gateway.Idcom
	otpGateway      gateway.OTPGateway
	dispatcher      notify.Dispatcher
	auditRecorder   audit.Recorder

	// Services
	mpinService       *service.MPINService
	loginService      *service.LoginService
	otpService        *service.OTPService
	deviceService     *service.DeviceService
	reviewService     *service.ReviewService
	onboardingService *service.OnboardingService
	txnTwoFaService   *service.TxnTwoFaService

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("mock_otp", cfg.Gateway.MockOTP),
		util.String("idcom_environment", cfg.Gateway.IdcomEnvironment),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = c
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if c, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = c
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch
	if c, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = c
		if err := f.esClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
		} else {
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse
	if c, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = c
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, encryption, bucketing and token managers.
func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			util.Warn("AWS config load failed - envelope encryption degrades to local keys", util.ErrorField(err))
		} else {
			kmsClient = kms.NewFromConfig(awsCfg)
		}
	}

	f.encryptionManager = encryption.NewEncryptionManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)
	f.tokenManager = token.NewManager(f.config)

	if f.config.IsProduction() {
		f.hasher.StartPepperRotation()
	}

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("encryption_initialized", f.encryptionManager != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
	)
}

// ==============================
// Repositories
// ==============================

func (f *Factory) UserRepository() scylla.UserRepository {
	if f.userRepository == nil {
		f.userRepository = scylla.NewUserRepository(f.ScyllaClient(), f.BucketingManager())
	}
	return f.userRepository
}

func (f *Factory) InvestorRepository() scylla.InvestorRepository {
	if f.investorRepository == nil {
		f.investorRepository = scylla.NewInvestorRepository(f.ScyllaClient())
	}
	return f.investorRepository
}

func (f *Factory) DeviceRepository() scylla.DeviceRepository {
	if f.deviceRepository == nil {
		f.deviceRepository = scylla.NewDeviceRepository(f.ScyllaClient())
	}
	return f.deviceRepository
}

func (f *Factory) IdcomRepository() scylla.IdcomRepository {
	if f.idcomRepository == nil {
		f.idcomRepository = scylla.NewIdcomRepository(f.ScyllaClient())
	}
	return f.idcomRepository
}

func (f *Factory) MpinHistoryRepository() scylla.MpinHistoryRepository {
	if f.mpinHistoryRepo == nil {
		f.mpinHistoryRepo = scylla.NewMpinHistoryRepository(f.ScyllaClient())
	}
	return f.mpinHistoryRepo
}

func (f *Factory) UamRepository() scylla.UamRepository {
	if f.uamRepository == nil {
		f.uamRepository = scylla.NewUamRepository(f.ScyllaClient())
	}
	return f.uamRepository
}

func (f *Factory) TwoFaRepository() scylla.TwoFaRepository {
	if f.twoFaRepository == nil {
		f.twoFaRepository = scylla.NewTwoFaRepository(f.ScyllaClient())
	}
	return f.twoFaRepository
}

func (f *Factory) NomineeRepository() scylla.NomineeRepository {
	if f.nomineeRepository == nil {
		f.nomineeRepository = scylla.NewNomineeRepository(f.ScyllaClient())
	}
	return f.nomineeRepository
}

func (f *Factory) CooldownCache() redis.OTPCooldownCache {
	if f.cooldownCache == nil {
		f.cooldownCache = redis.NewOTPCooldownCache(f.redisClient)
	}
	return f.cooldownCache
}

func (f *Factory) SessionCache() redis.SessionCache {
	if f.sessionCache == nil {
		f.sessionCache = redis.NewSessionCache(f.redisClient)
	}
	return f.sessionCache
}

// ==============================
// Gateways and sinks
// ==============================

func (f *Factory) CoreBanking() gateway.CoreBanking {
	if f.coreBanking == nil {
		f.coreBanking = gateway.NewCoreBanking(f.config)
	}
	return f.coreBanking
}

func (f *Factory) IdcomGateway() gateway.Idcom {
	if f.idcomGateway == nil {
		f.idcomGateway = gateway.NewIdcom(f.config)
	}
	return f.idcomGateway
}

func (f *Factory) OTPGateway() gateway.OTPGateway {
	if f.otpGateway == nil {
		f.otpGateway = gateway.NewOTPGateway(f.config)
	}
	return f.otpGateway
}

func (f *Factory) Dispatcher() notify.Dispatcher {
	if f.dispatcher == nil {
		if f.kafkaProducer == nil {
			f.dispatcher = notify.NopDispatcher{}
		} else {
			f.dispatcher = notify.NewDispatcher(f.kafkaProducer, f.config)
		}
	}
	return f.dispatcher
}

func (f *Factory) AuditRecorder() audit.Recorder {
	if f.auditRecorder == nil {
		f.auditRecorder = audit.NewRecorder(f.clickhouseClient, f.esClient, f.BucketingManager())
	}
	return f.auditRecorder
}

// ==============================
// Services
// ==============================

func (f *Factory) MPINService() *service.MPINService {
	if f.mpinService == nil {
		f.mpinService = service.NewMPINService(
			f.UserRepository(),
			f.MpinHistoryRepository(),
			f.DeviceRepository(),
			f.Hasher(),
			f.Dispatcher(),
			f.AuditRecorder(),
			f.config.Policy,
		)
	}
	return f.mpinService
}

func (f *Factory) LoginService() *service.LoginService {
	if f.loginService == nil {
		f.loginService = service.NewLoginService(
			f.UserRepository(),
			f.UamRepository(),
			f.SessionCache(),
			f.TokenManager(),
			f.Hasher(),
			f.Dispatcher(),
			f.AuditRecorder(),
			f.config,
		)
	}
	return f.loginService
}

func (f *Factory) DeviceService() *service.DeviceService {
	if f.deviceService == nil {
		f.deviceService = service.NewDeviceService(
			f.DeviceRepository(),
			f.UserRepository(),
			f.EncryptionManager(),
			f.Dispatcher(),
			f.AuditRecorder(),
			f.config.Policy,
		)
	}
	return f.deviceService
}

func (f *Factory) OTPService() *service.OTPService {
	if f.otpService == nil {
		f.otpService = service.NewOTPService(
			f.UserRepository(),
			f.OTPGateway(),
			f.CooldownCache(),
			f.SessionCache(),
			f.DeviceService(),
			f.TokenManager(),
			f.EncryptionManager(),
			f.Dispatcher(),
			f.AuditRecorder(),
			f.config.Policy,
		)
	}
	return f.otpService
}

func (f *Factory) ReviewService() *service.ReviewService {
	if f.reviewService == nil {
		source := service.NewProfileSource(f.UserRepository(), f.InvestorRepository(), f.CoreBanking())
		f.reviewService = service.NewReviewService(source)
	}
	return f.reviewService
}

func (f *Factory) OnboardingService() *service.OnboardingService {
	if f.onboardingService == nil {
		f.onboardingService = service.NewOnboardingService(
			f.UserRepository(),
			f.InvestorRepository(),
			f.IdcomRepository(),
			f.NomineeRepository(),
			f.CoreBanking(),
			f.IdcomGateway(),
			f.ReviewService(),
			f.DeviceService(),
			f.TokenManager(),
			f.SessionCache(),
			f.EncryptionManager(),
			f.AuditRecorder(),
			f.config.Gateway.IdcomRedirectURI,
		)
	}
	return f.onboardingService
}

func (f *Factory) TxnTwoFaService() *service.TxnTwoFaService {
	if f.txnTwoFaService == nil {
		f.txnTwoFaService = service.NewTxnTwoFaService(
			f.TwoFaRepository(),
			f.OTPGateway(),
			f.CooldownCache(),
			f.AuditRecorder(),
			f.config.Policy,
		)
	}
	return f.txnTwoFaService
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	} else {
		healthErrors["elasticsearch"] = fmt.Errorf("elasticsearch client not initialized")
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	} else {
		healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	if f.hasher == nil {
		healthErrors["hasher"] = fmt.Errorf("hasher not initialized")
	}
	if f.encryptionManager == nil {
		healthErrors["encryption"] = fmt.Errorf("encryption manager not initialized")
	}
	if f.bucketingManager == nil {
		healthErrors["bucketing"] = fmt.Errorf("bucketing manager not initialized")
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
			util.Info("Encryption manager cache cleared")
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ScyllaClient() *scylla.ScyllaClient {
	return f.scyllaClient
}

func (f *Factory) Hasher() *hashing.Hasher {
	return f.hasher
}

func (f *Factory) EncryptionManager() *encryption.EncryptionManager {
	return f.encryptionManager
}

func (f *Factory) BucketingManager() *bucketing.BucketingManager {
	return f.bucketingManager
}

func (f *Factory) TokenManager() *token.Manager {
	return f.tokenManager
}
