package access

import (
	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/projection"
)

// resource names used by the policy
const (
	ResourceIssues        = "issues"
	ResourceMeetings      = "meetings"
	ResourceAnnouncements = "announcements"
	ResourceUsers         = "users"
	ResourceCategories    = "categories"
	ResourceStatuses      = "statuses"
	ResourceComments      = "comments"
	ResourceLocations     = "locations"
)

var (
	withoutSecrets = projection.Parse("*", "!password", "!passwordSalt")
	userUpdatable  = projection.Parse("firstName", "lastName", "about", "password", "email", "avatarURL")
)

var (
	create = core.OperationCreate
	read   = core.OperationRead
	update = core.OperationUpdate
	del    = core.OperationDelete
	list   = core.OperationList
)

func authored(resource string) []Rule {
	return []Rule{
		{Role: RoleUser, Resource: resource, Operations: []core.Operation{create, read, list}},
		{Role: RoleUser, Resource: resource, Operations: []core.Operation{update, del}, When: Owner(core.FieldAuthorID)},
		{Role: RoleAdmin, Resource: resource, Operations: core.AllOperations},
	}
}

func adminManaged(resource string) []Rule {
	return []Rule{
		{Role: RoleUser, Resource: resource, Operations: []core.Operation{read, list}},
		{Role: RoleAdmin, Resource: resource, Operations: core.AllOperations},
	}
}

func userRules() []Rule {
	return []Rule{
		{Role: RoleUser, Resource: ResourceUsers, Operations: []core.Operation{read}, When: Owner(core.FieldID), Fields: &withoutSecrets},
		{Role: RoleUser, Resource: ResourceUsers, Operations: []core.Operation{update}, When: Owner(core.FieldID), Fields: &userUpdatable},
		{Role: RoleUser, Resource: ResourceUsers, Operations: []core.Operation{del}, When: Owner(core.FieldID)},
		{Role: RoleAdmin, Resource: ResourceUsers, Operations: []core.Operation{read, list}, Fields: &withoutSecrets},
		{Role: RoleAdmin, Resource: ResourceUsers, Operations: []core.Operation{update}},
		// admins cannot delete themselves
		{Role: RoleAdmin, Resource: ResourceUsers, Operations: []core.Operation{del}, When: NotOwner(core.FieldID)},
	}
}

func commentRules() []Rule {
	return []Rule{
		{Role: RoleUser, Resource: ResourceComments, Operations: []core.Operation{create, read, list}},
		{Role: RoleUser, Resource: ResourceComments, Operations: []core.Operation{del}, When: Owner(core.FieldAuthorID)},
		{Role: RoleAdmin, Resource: ResourceComments, Operations: core.AllOperations},
	}
}

// locations are checked against the issue or meeting they are attached to
func locationRules() []Rule {
	return []Rule{
		{Role: RoleUser, Resource: ResourceLocations, Operations: []core.Operation{read}},
		{Role: RoleUser, Resource: ResourceLocations, Operations: []core.Operation{create, del}, When: Owner(core.FieldAuthorID)},
		{Role: RoleAdmin, Resource: ResourceLocations, Operations: core.AllOperations},
	}
}

// DefaultPolicy is the rule table of the community API
var DefaultPolicy = func() Policy {
	var p Policy
	p = append(p, authored(ResourceIssues)...)
	p = append(p, authored(ResourceMeetings)...)
	p = append(p, adminManaged(ResourceAnnouncements)...)
	p = append(p, adminManaged(ResourceCategories)...)
	p = append(p, adminManaged(ResourceStatuses)...)
	p = append(p, userRules()...)
	p = append(p, commentRules()...)
	p = append(p, locationRules()...)
	return p
}()
