package domain

// SubjectType differentiates customer vs vet tokens. Tokens are issued by
// the external authentication service; this service only verifies them.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeVet      SubjectType = "VET"
)

// SenderRoleFor maps an authenticated subject to its messaging role.
func SenderRoleFor(subject SubjectType) SenderRole {
	if subject == SubjectTypeVet {
		return SenderVet
	}
	return SenderCustomer
}
