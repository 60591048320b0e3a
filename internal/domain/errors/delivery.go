package errors

import (
	"errors"
	"fmt"
)

// DeliveryKind classifies a failed or skipped send independently of the provider.
type DeliveryKind string

const (
	KindConfigurationMissing DeliveryKind = "CONFIGURATION_MISSING"
	KindProviderRejected     DeliveryKind = "PROVIDER_REJECTED"
	KindProviderTransient    DeliveryKind = "PROVIDER_TRANSIENT"
	KindSuppressed           DeliveryKind = "SUPPRESSED"
)

// DeliveryError carries the normalized kind plus the provider's own diagnostic text.
type DeliveryError struct {
	Kind   DeliveryKind
	Detail string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later sweep may attempt the send again.
func (e *DeliveryError) Retryable() bool {
	return e.Kind == KindProviderTransient
}

func NewDeliveryError(kind DeliveryKind, detail string, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Detail: detail, Err: err}
}

func ConfigurationMissing(detail string) *DeliveryError {
	return NewDeliveryError(KindConfigurationMissing, detail, nil)
}

func ProviderRejected(detail string, err error) *DeliveryError {
	return NewDeliveryError(KindProviderRejected, detail, err)
}

func ProviderTransient(detail string, err error) *DeliveryError {
	return NewDeliveryError(KindProviderTransient, detail, err)
}

func Suppressed(address string) *DeliveryError {
	return NewDeliveryError(KindSuppressed, "recipient is suppressed: "+address, nil)
}

// AsDeliveryError extracts a DeliveryError. Unclassified errors are treated as transient.
func AsDeliveryError(err error) *DeliveryError {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	return ProviderTransient(err.Error(), err)
}

// DeliveryKindOf returns the kind of err, or "" when err is nil.
func DeliveryKindOf(err error) DeliveryKind {
	if de := AsDeliveryError(err); de != nil {
		return de.Kind
	}
	return ""
}
