package payload

import (
	"sort"
	"strconv"

	"eviction-tracker/efiling/internal/efile/domain"
)

// Complaint filing codes by case class.
const (
	CodeResidentialJointAction = "174403"
	CodeCommercialJointAction  = "174400"
	CodeResidentialPossession  = "174402"
	CodeCommercialPossession   = "174399"
)

const complaintPrefix = "Complaint / Petition - Eviction - "

// FilingCode is the complaint code for a case type.
type FilingCode struct {
	Code        string
	Description string
	JointAction bool
}

var complaintCodes = map[string]FilingCode{
	// Residential joint action, jury and non-jury.
	"237042": {CodeResidentialJointAction, complaintPrefix + "Residential - Joint Action", true},
	"237037": {CodeResidentialJointAction, complaintPrefix + "Residential - Joint Action", true},
	// Commercial joint action.
	"201996": {CodeCommercialJointAction, complaintPrefix + "Commercial - Joint Action", true},
	"201995": {CodeCommercialJointAction, complaintPrefix + "Commercial - Joint Action", true},
	// Residential possession.
	"237041": {CodeResidentialPossession, complaintPrefix + "Residential - Possession", false},
	"237036": {CodeResidentialPossession, complaintPrefix + "Residential - Possession", false},
	// Commercial possession.
	"201992": {CodeCommercialPossession, complaintPrefix + "Commercial - Possession", false},
	"201991": {CodeCommercialPossession, complaintPrefix + "Commercial - Possession", false},
}

// SelectFilingCode returns the complaint code for caseType.
// Unknown case types are rejected rather than defaulted.
func SelectFilingCode(caseType string) (FilingCode, error) {
	fc, ok := complaintCodes[caseType]
	if !ok {
		return FilingCode{}, domain.ValidationError{Field: "case_type", Reason: "unrecognized case type " + strconv.Quote(caseType)}
	}
	return fc, nil
}

// IsJointAction reports whether caseType belongs to the joint-action class.
func IsJointAction(caseType string) bool {
	return complaintCodes[caseType].JointAction
}

// CaseTypes returns every supported case type in ascending order.
func CaseTypes() []string {
	out := make([]string, 0, len(complaintCodes))
	for ct := range complaintCodes {
		out = append(out, ct)
	}
	sort.Strings(out)
	return out
}
