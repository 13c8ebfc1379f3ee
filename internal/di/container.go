package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/microcosm-cc/bluemonday"

	"github.com/autexline/api/internal/invoicing"
	"github.com/autexline/api/internal/notify"
	"github.com/autexline/api/internal/platform/auth"
	"github.com/autexline/api/internal/platform/config"
	pfirestore "github.com/autexline/api/internal/platform/firestore"
	"github.com/autexline/api/internal/platform/storage"
	"github.com/autexline/api/internal/platform/textutil"
	firestoreRepo "github.com/autexline/api/internal/repositories/firestore"
	"github.com/autexline/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Requests services.RequestService
	Counters services.CounterService
	Invoices services.InvoiceService
}

// Deps are the externally managed clients the container builds on. Their
// lifecycles stay with the caller; Container never closes them.
type Deps struct {
	Firestore *pfirestore.Provider
	Storage   *cloudstorage.Client
	// MailTopic carries outbound email jobs. Nil disables notifications.
	MailTopic *pubsub.Topic
}

// Container wires repositories, services, and upload infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Services      Services
	Authenticator *auth.Authenticator
	ImageUploads  *storage.Uploader
	VideoUploads  *storage.Uploader
}

// NewContainer constructs the runtime dependency graph from configuration and
// shared clients.
func NewContainer(_ context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Firestore == nil {
		return nil, errors.New("di: firestore provider is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("di: storage client is required")
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("build token verifier: %w", err)
	}
	authenticator := auth.NewAuthenticator(verifier)

	counterRepo, err := firestoreRepo.NewCounterRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}
	requestRepo, err := firestoreRepo.NewRequestRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build request repository: %w", err)
	}

	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: counterRepo,
		Clock:      time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build counter service: %w", err)
	}

	formatter := textutil.NewFormatter(textutil.DefaultTables())
	sanitizer := bluemonday.StrictPolicy()
	requestSvc, err := services.NewRequestService(services.RequestServiceDeps{
		Requests: requestRepo,
		Counters: counterSvc,
		Format:   formatter.Format,
		Sanitize: sanitizer.Sanitize,
		Clock:    time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build request service: %w", err)
	}

	invoiceProvider, err := invoicing.NewPayPalProvider(cfg.PayPal)
	if err != nil {
		return nil, fmt.Errorf("build invoicing provider: %w", err)
	}

	notifier := notify.Noop()
	if deps.MailTopic != nil {
		publisher, err := notify.NewPubSubPublisher(deps.MailTopic)
		if err != nil {
			return nil, fmt.Errorf("build mail publisher: %w", err)
		}
		notifier = publisher
	}

	invoiceSvc, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Provider:   invoiceProvider,
		Notifier:   notifier,
		AdminEmail: cfg.Mail.AdminEmail,
		SendWait:   cfg.PayPal.SendWait,
		Clock:      time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build invoice service: %w", err)
	}

	imageUploads, err := storage.NewUploader(deps.Storage, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build image uploader: %w", err)
	}
	videoUploads, err := storage.NewUploader(deps.Storage, cfg.Storage,
		storage.WithAllowedContentTypes("video/*"),
	)
	if err != nil {
		return nil, fmt.Errorf("build video uploader: %w", err)
	}

	return &Container{
		Config: cfg,
		Services: Services{
			Requests: requestSvc,
			Counters: counterSvc,
			Invoices: invoiceSvc,
		},
		Authenticator: authenticator,
		ImageUploads:  imageUploads,
		VideoUploads:  videoUploads,
	}, nil
}
