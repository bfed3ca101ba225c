// Package permissions maps organization roles to dashboard capabilities through one table.
package permissions

import (
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

type Capability int

const (
	AssignJobs Capability = iota
	ManageTeams
	ManageMembers
	ViewOrgEarnings
	ManageOrgSettings
	ChangeMemberRoles
	RemoveMembers
	ViewAllOrgBookings
	UpdateBookingStatus
	CreatePayoutBatches

	numCapabilities
)

var capabilityNames = [numCapabilities]string{
	AssignJobs:          "assign jobs",
	ManageTeams:         "manage teams",
	ManageMembers:       "manage members",
	ViewOrgEarnings:     "view organization earnings",
	ManageOrgSettings:   "manage organization settings",
	ChangeMemberRoles:   "change member roles",
	RemoveMembers:       "remove members",
	ViewAllOrgBookings:  "view all organization bookings",
	UpdateBookingStatus: "update booking status",
	CreatePayoutBatches: "create payout batches",
}

func (c Capability) String() string {
	if c < 0 || c >= numCapabilities {
		return "unknown capability"
	}
	return capabilityNames[c]
}

// AllCapabilities lists every capability in declaration order.
func AllCapabilities() []Capability {
	out := make([]Capability, 0, numCapabilities)
	for c := Capability(0); c < numCapabilities; c++ {
		out = append(out, c)
	}
	return out
}

type CapabilitySet map[Capability]bool

// grants is the only place role/capability pairs are defined.
var grants = map[model.OrganizationRole]CapabilitySet{
	model.RoleOwner: {
		AssignJobs: true, ManageTeams: true, ManageMembers: true, ViewOrgEarnings: true,
		ManageOrgSettings: true, ChangeMemberRoles: true, RemoveMembers: true,
		ViewAllOrgBookings: true, UpdateBookingStatus: true, CreatePayoutBatches: true,
	},
	model.RoleManager: {
		AssignJobs: true, ManageTeams: true, ManageMembers: true, ViewOrgEarnings: true,
		RemoveMembers: true, ViewAllOrgBookings: true, UpdateBookingStatus: true,
		CreatePayoutBatches: true,
	},
	model.RoleDispatcher: {
		AssignJobs: true, ViewAllOrgBookings: true, UpdateBookingStatus: true,
	},
	model.RoleDetailer: {},
}

// Capabilities is the flattened view returned to dashboard clients.
type Capabilities struct {
	CanAssignJobs          bool `json:"canAssignJobs"`
	CanManageTeams         bool `json:"canManageTeams"`
	CanManageMembers       bool `json:"canManageMembers"`
	CanViewOrgEarnings     bool `json:"canViewOrgEarnings"`
	CanManageOrgSettings   bool `json:"canManageOrgSettings"`
	CanChangeMemberRoles   bool `json:"canChangeMemberRoles"`
	CanRemoveMembers       bool `json:"canRemoveMembers"`
	CanViewAllOrgBookings  bool `json:"canViewAllOrgBookings"`
	CanUpdateBookingStatus bool `json:"canUpdateBookingStatus"`
	CanCreatePayoutBatches bool `json:"canCreatePayoutBatches"`
}

// Can reports whether role holds capability. A nil role is not a member of any organization
// and holds nothing; so does a role missing from the table.
func Can(role *model.OrganizationRole, c Capability) bool {
	if role == nil {
		return false
	}
	return grants[*role][c]
}

func For(role *model.OrganizationRole) Capabilities {
	return Capabilities{
		CanAssignJobs:          Can(role, AssignJobs),
		CanManageTeams:         Can(role, ManageTeams),
		CanManageMembers:       Can(role, ManageMembers),
		CanViewOrgEarnings:     Can(role, ViewOrgEarnings),
		CanManageOrgSettings:   Can(role, ManageOrgSettings),
		CanChangeMemberRoles:   Can(role, ChangeMemberRoles),
		CanRemoveMembers:       Can(role, RemoveMembers),
		CanViewAllOrgBookings:  Can(role, ViewAllOrgBookings),
		CanUpdateBookingStatus: Can(role, UpdateBookingStatus),
		CanCreatePayoutBatches: Can(role, CreatePayoutBatches),
	}
}

// Require fails with a permission-denied error when role lacks capability.
func Require(role *model.OrganizationRole, c Capability) error {
	if Can(role, c) {
		return nil
	}
	return apperr.PermissionDenied("you do not have permission to " + c.String())
}

func CanAssignJobs(role *model.OrganizationRole) bool          { return Can(role, AssignJobs) }
func CanManageTeams(role *model.OrganizationRole) bool         { return Can(role, ManageTeams) }
func CanManageMembers(role *model.OrganizationRole) bool       { return Can(role, ManageMembers) }
func CanViewOrgEarnings(role *model.OrganizationRole) bool     { return Can(role, ViewOrgEarnings) }
func CanManageOrgSettings(role *model.OrganizationRole) bool   { return Can(role, ManageOrgSettings) }
func CanChangeMemberRoles(role *model.OrganizationRole) bool   { return Can(role, ChangeMemberRoles) }
func CanRemoveMembers(role *model.OrganizationRole) bool       { return Can(role, RemoveMembers) }
func CanViewAllOrgBookings(role *model.OrganizationRole) bool  { return Can(role, ViewAllOrgBookings) }
func CanUpdateBookingStatus(role *model.OrganizationRole) bool { return Can(role, UpdateBookingStatus) }
func CanCreatePayoutBatches(role *model.OrganizationRole) bool { return Can(role, CreatePayoutBatches) }

// ParseRole returns nil for an empty or unrecognised role string.
func ParseRole(raw string) *model.OrganizationRole {
	r := model.OrganizationRole(raw)
	if _, ok := grants[r]; !ok {
		return nil
	}
	return &r
}
