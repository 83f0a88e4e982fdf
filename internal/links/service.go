package links

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sundayezeilo/tinylink/codegen"
	"github.com/sundayezeilo/tinylink/internal/errx"
)

const DefaultMaxAttempts = 5

var (
	ErrCodeTaken           = errors.New("Code already exists.")
	ErrGenerationExhausted = errors.New("failed to generate a unique code")
	ErrNotFound            = errors.New("Not found")
)

// CreateLinkRequest holds the input for creating a link.
type CreateLinkRequest struct {
	URL  string `validate:"required,max=2048,http_url"`
	Code string `validate:"omitempty,alphanum,min=6,max=8"` // empty: generate one
}

// Service defines the link operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Counters(ctx context.Context) ([]Counter, error)
	Get(ctx context.Context, code string) (Link, error)
	Delete(ctx context.Context, code string) error
	// Resolve returns the destination for code and records one click.
	Resolve(ctx context.Context, code string) (string, error)
}

type service struct {
	store       Store
	generator   codegen.Generator
	validate    *validator.Validate
	codeLength  int
	maxAttempts int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Generator   codegen.Generator
	CodeLength  int // generated code length (default: 6)
	MaxAttempts int // generation attempts before giving up (default: 5)
}

// NewService creates a new service instance.
func NewService(store Store, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.Generator
	if gen == nil {
		gen = codegen.NewBase62()
	}

	length := config.CodeLength
	if length < MinCodeLength || length > MaxCodeLength {
		length = codegen.DefaultLength
	}

	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	return &service{
		store:       store,
		generator:   gen,
		validate:    validator.New(),
		codeLength:  length,
		maxAttempts: attempts,
	}
}

func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "links.service.Create"

	req.URL = strings.TrimSpace(req.URL)
	req.Code = strings.TrimSpace(req.Code)

	if err := s.validateCreate(req); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	if req.Code != "" {
		return s.createCustom(ctx, req.Code, req.URL)
	}
	return s.createGenerated(ctx, req.URL)
}

func (s *service) createCustom(ctx context.Context, code, url string) (Link, error) {
	const op = "links.service.Create"

	if IsReserved(code) {
		return Link{}, errx.Newf(op, errx.Invalid, "Code %q is reserved.", code)
	}

	_, err := s.store.FindByCode(ctx, code)
	switch {
	case err == nil:
		return Link{}, errx.E(op, errx.Conflict, ErrCodeTaken)
	case !errx.Is(err, errx.NotFound):
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	// A concurrent insert of the same code still loses on the primary key.
	link, err := s.store.Insert(ctx, code, url)
	if err != nil {
		if errx.Is(err, errx.Conflict) {
			return Link{}, errx.E(op, errx.Conflict, ErrCodeTaken)
		}
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) createGenerated(ctx context.Context, url string) (Link, error) {
	const op = "links.service.Create"

	for range s.maxAttempts {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		if !ValidCode(code) {
			return Link{}, errx.Newf(op, errx.Internal, "generator produced invalid code %q", code)
		}
		if IsReserved(code) {
			continue
		}

		_, err = s.store.FindByCode(ctx, code)
		if err == nil {
			continue
		}
		if !errx.Is(err, errx.NotFound) {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}

		link, err := s.store.Insert(ctx, code, url)
		if err == nil {
			return link, nil
		}
		// Lost a race for the code: draw again.
		if !errx.Is(err, errx.Conflict) {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Internal, ErrGenerationExhausted)
}

func (s *service) List(ctx context.Context) ([]Link, error) {
	const op = "links.service.List"

	links, err := s.store.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

func (s *service) Counters(ctx context.Context) ([]Counter, error) {
	const op = "links.service.Counters"

	counters, err := s.store.Counters(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return counters, nil
}

func (s *service) Get(ctx context.Context, code string) (Link, error) {
	const op = "links.service.Get"

	if !ValidCode(code) {
		return Link{}, errx.E(op, errx.NotFound, ErrNotFound)
	}

	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) Delete(ctx context.Context, code string) error {
	const op = "links.service.Delete"

	if !ValidCode(code) {
		return errx.E(op, errx.NotFound, ErrNotFound)
	}

	if err := s.store.Delete(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "links.service.Resolve"

	if !ValidCode(code) || IsReserved(code) {
		return "", errx.E(op, errx.NotFound, ErrNotFound)
	}

	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	// Deleted between lookup and increment: treat as missing.
	if err := s.store.IncrementClicks(ctx, code); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return link.URL, nil
}

func (s *service) validateCreate(req CreateLinkRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Field() {
	case "URL":
		if fe.Tag() == "required" {
			return errors.New("URL is required.")
		}
		if fe.Tag() == "max" {
			return fmt.Errorf("URL must be at most %d characters.", MaxURLLength)
		}
		return errors.New("Invalid URL. Include protocol (http:// or https://).")
	case "Code":
		return errors.New("Custom code must match [A-Za-z0-9]{6,8}.")
	default:
		return fmt.Errorf("invalid field %s", fe.Field())
	}
}
