package access

import (
	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/projection"
)

// Condition decides whether a rule applies to a requester and the record
// acted upon. The record is nil for create and list.
type Condition func(requester *Requester, record core.Record) bool

// Always is the condition of unconditional grants
func Always(*Requester, core.Record) bool { return true }

// Owner holds when the requester's ID equals the record's field
func Owner(field string) Condition {
	return func(requester *Requester, record core.Record) bool {
		if requester == nil {
			return false
		}
		owner, ok := record.Int64(field)
		return ok && owner == requester.ID
	}
}

// NotOwner holds when the record exists and the requester is not its owner
func NotOwner(field string) Condition {
	owner := Owner(field)
	return func(requester *Requester, record core.Record) bool {
		if requester == nil || record == nil {
			return false
		}
		return !owner(requester, record)
	}
}

// Rule grants a role some operations on a resource when its condition holds.
// Fields is the projection applied to read output or update input; a zero
// Fields means all fields.
type Rule struct {
	Role       string
	Resource   string
	Operations []core.Operation
	When       Condition
	Fields     *projection.Fields
}

func (r Rule) matches(role, resource string, op core.Operation) bool {
	if r.Role != role || r.Resource != resource {
		return false
	}
	for _, o := range r.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Decision is the outcome of a permission check
type Decision struct {
	Granted bool
	Fields  projection.Fields
}

// Filter applies the decision's projection to a record. A denied decision
// filters everything.
func (d Decision) Filter(record core.Record) core.Record {
	if !d.Granted {
		return core.Record{}
	}
	return d.Fields.Apply(record)
}

// FilterWrite applies the decision's projection to an update body and strips
// the identifier, creation timestamp and owner fields.
func (d Decision) FilterWrite(body core.Record) core.Record {
	if !d.Granted {
		return core.Record{}
	}
	return d.Fields.ForWrite(body)
}

var deny = Decision{Granted: false, Fields: projection.None}

// Policy is an ordered rule table. The first rule that matches role,
// resource and operation and whose condition holds wins; if none does, the
// request is denied.
type Policy []Rule

// Check evaluates the policy. Denial is a regular result, never an error.
func (p Policy) Check(requester *Requester, op core.Operation, resource string, record core.Record) Decision {
	if requester == nil {
		return deny
	}
	for _, rule := range p {
		if !rule.matches(requester.Role, resource, op) {
			continue
		}
		when := rule.When
		if when == nil {
			when = Always
		}
		if !when(requester, record) {
			continue
		}
		fields := projection.All
		if rule.Fields != nil {
			fields = *rule.Fields
		}
		return Decision{Granted: true, Fields: fields}
	}
	return deny
}

// Check evaluates the default policy
func Check(requester *Requester, op core.Operation, resource string, record core.Record) Decision {
	return DefaultPolicy.Check(requester, op, resource, record)
}
