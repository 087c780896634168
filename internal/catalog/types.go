package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToBeReplacedID is the sentinel identifier a caller submits when publishing a
// brand-new offering. The coordinator replaces it with a freshly minted id.
const ToBeReplacedID = "urn:offering:to-be-replaced"

// OfferingIDPrefix is the namespace every offering identifier must carry.
const OfferingIDPrefix = "urn:offering:"

// DocumentStatus is the remote catalog's view of a document.
type DocumentStatus string

const (
	StatusActive  DocumentStatus = "active"
	StatusRevoked DocumentStatus = "revoked"
)

// TermsAndConditions references a legal terms document by location and hash.
// Membership checks in the publish path compare by value.
type TermsAndConditions struct {
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// SubjectKind discriminates the credential subject variants.
type SubjectKind string

const (
	KindSaaS         SubjectKind = "saas"
	KindDataDelivery SubjectKind = "data-delivery"
	KindCooperation  SubjectKind = "cooperation"
)

// SaaSSubject describes a software-as-a-service offering.
type SaaSSubject struct {
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	HardwareRequirements string `json:"hardware_requirements,omitempty"`
	UserCountOptions     []int  `json:"user_count_options,omitempty"`
}

// DataDeliverySubject describes a data exchange offering.
type DataDeliverySubject struct {
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	DataAccessType       string `json:"data_access_type,omitempty"`
	DataTransferType     string `json:"data_transfer_type,omitempty"`
	ExchangeCountOptions []int  `json:"exchange_count_options,omitempty"`
}

// CooperationSubject describes a plain cooperation offering without technical
// delivery details.
type CooperationSubject struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CredentialSubject is a tagged variant over the supported offering kinds.
// Exactly one of the pointers matching Kind is set.
type CredentialSubject struct {
	Kind         SubjectKind
	SaaS         *SaaSSubject
	DataDelivery *DataDeliverySubject
	Cooperation  *CooperationSubject
}

// Name returns the display name of the active variant.
func (s *CredentialSubject) Name() string {
	switch s.Kind {
	case KindSaaS:
		if s.SaaS != nil {
			return s.SaaS.Name
		}
	case KindDataDelivery:
		if s.DataDelivery != nil {
			return s.DataDelivery.Name
		}
	case KindCooperation:
		if s.Cooperation != nil {
			return s.Cooperation.Name
		}
	}
	return ""
}

// Valid reports whether the discriminant and the populated variant agree.
func (s *CredentialSubject) Valid() bool {
	switch s.Kind {
	case KindSaaS:
		return s.SaaS != nil
	case KindDataDelivery:
		return s.DataDelivery != nil
	case KindCooperation:
		return s.Cooperation != nil
	}
	return false
}

// MarshalJSON flattens the active variant alongside its type discriminant.
func (s CredentialSubject) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindSaaS:
		return json.Marshal(struct {
			Type SubjectKind `json:"type"`
			*SaaSSubject
		}{s.Kind, s.SaaS})
	case KindDataDelivery:
		return json.Marshal(struct {
			Type SubjectKind `json:"type"`
			*DataDeliverySubject
		}{s.Kind, s.DataDelivery})
	case KindCooperation:
		return json.Marshal(struct {
			Type SubjectKind `json:"type"`
			*CooperationSubject
		}{s.Kind, s.Cooperation})
	}
	return nil, fmt.Errorf("credential subject: unknown kind %q", s.Kind)
}

// UnmarshalJSON selects the variant from the type discriminant.
func (s *CredentialSubject) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type SubjectKind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.Type {
	case KindSaaS:
		variant := &SaaSSubject{}
		if err := json.Unmarshal(data, variant); err != nil {
			return err
		}
		*s = CredentialSubject{Kind: KindSaaS, SaaS: variant}
	case KindDataDelivery:
		variant := &DataDeliverySubject{}
		if err := json.Unmarshal(data, variant); err != nil {
			return err
		}
		*s = CredentialSubject{Kind: KindDataDelivery, DataDelivery: variant}
	case KindCooperation:
		variant := &CooperationSubject{}
		if err := json.Unmarshal(data, variant); err != nil {
			return err
		}
		*s = CredentialSubject{Kind: KindCooperation, Cooperation: variant}
	default:
		return fmt.Errorf("credential subject: unknown kind %q", probe.Type)
	}
	return nil
}

// OfferingCredential is the self-description payload submitted to and returned
// by the remote catalog.
type OfferingCredential struct {
	ID                 string               `json:"id"`
	Issuer             string               `json:"issuer"`
	CreationDate       time.Time            `json:"creation_date"`
	TermsAndConditions []TermsAndConditions `json:"terms_and_conditions"`
	Subject            CredentialSubject    `json:"credential_subject"`
}

// Document is one stored catalog entry, keyed by content hash.
type Document struct {
	ContentHash string             `json:"content_hash"`
	Status      DocumentStatus     `json:"status"`
	Credential  OfferingCredential `json:"credential"`
}

// SubmitResult is the catalog's acknowledgement of an accepted document.
type SubmitResult struct {
	ID          string         `json:"id"`
	Issuer      string         `json:"issuer"`
	ContentHash string         `json:"content_hash"`
	Status      DocumentStatus `json:"status"`
}

// DocumentPage is a bulk query result.
type DocumentPage struct {
	TotalCount int        `json:"total_count"`
	Items      []Document `json:"items"`
}

// RemoteError is a rejection returned by the catalog itself, as opposed to a
// transport failure. The body message may be arbitrarily long; callers
// truncate before surfacing it to users.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("catalog rejected request (status %d): %s", e.StatusCode, e.Message)
}
