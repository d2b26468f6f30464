package payload

import (
	"strconv"

	"eviction-tracker/efiling/internal/efile/domain"
)

// Unknown Occupants is filed as an individual defendant with this fixed name.
const (
	UnknownOccupantsFirstName = "All"
	UnknownOccupantsLastName  = "Unknown Occupants"
)

// IsUnknownOccupants reports whether p is the Unknown Occupants placeholder party.
func IsUnknownOccupants(p domain.CaseParty) bool {
	n, ok := p.Name.(domain.Individual)
	return ok && n.FirstName == UnknownOccupantsFirstName && n.LastName == UnknownOccupantsLastName
}

// AssembleParties orders the case parties: petitioner first, defendants in input order,
// Unknown Occupants last when included. Parties without an id get Party_<position>.
// Unknown Occupants shares the first defendant's address.
func AssembleParties(petitioner domain.PartyInput, defendants []domain.PartyInput, includeUnknownOccupants bool, leadAttorney string) []domain.CaseParty {
	parties := make([]domain.CaseParty, 0, len(defendants)+2)
	parties = append(parties, domain.CaseParty{
		ID:           partyID(petitioner.ID, 1),
		Role:         domain.RolePlaintiff,
		Name:         petitioner.Name(),
		Address:      petitioner.Address(),
		LeadAttorney: leadAttorney,
	})
	for _, d := range defendants {
		parties = append(parties, domain.CaseParty{
			ID:      partyID(d.ID, len(parties)+1),
			Role:    domain.RoleDefendant,
			Name:    d.Name(),
			Address: d.Address(),
		})
	}
	if includeUnknownOccupants {
		var addr domain.Address
		if len(defendants) > 0 {
			addr = defendants[0].Address()
			addr.Line2 = ""
		}
		parties = append(parties, domain.CaseParty{
			ID:      partyID("", len(parties)+1),
			Role:    domain.RoleDefendant,
			Name:    domain.Individual{FirstName: UnknownOccupantsFirstName, LastName: UnknownOccupantsLastName},
			Address: addr,
		})
	}
	return parties
}

func partyID(id string, position int) string {
	if id != "" {
		return id
	}
	return "Party_" + strconv.Itoa(position)
}

// ComputeOptionalServicesQuantity returns the service quantity for the complaint and whether
// the optional_services field applies at all. It only applies to joint-action case types.
func ComputeOptionalServicesQuantity(caseType string, namedDefendants int, includeUnknownOccupants bool) (int, bool) {
	if !IsJointAction(caseType) {
		return 0, false
	}
	n := namedDefendants
	if includeUnknownOccupants {
		n++
	}
	return n, true
}
