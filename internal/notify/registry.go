package notify

import "slices"

// registration is one successful Subscribe call. Identity is the pointer:
// a later Subscribe with the same subscriber id creates a new registration,
// so unsubscribe functions handed out earlier cannot remove it.
type registration struct {
	sub Subscriber
}

// registry tracks connected registrations. A subscriber id is connected
// exactly while its registration is present. It is not safe for concurrent
// use; the engine guards it.
type registry struct {
	byID      map[string]*registration
	byProject map[string][]*registration
}

func newRegistry() *registry {
	return &registry{
		byID:      make(map[string]*registration),
		byProject: make(map[string][]*registration),
	}
}

// add registers reg and returns the registration it replaced, if any.
func (r *registry) add(reg *registration) *registration {
	prev := r.byID[reg.sub.ID]
	if prev != nil {
		r.remove(prev)
	}
	r.byID[reg.sub.ID] = reg
	r.byProject[reg.sub.ProjectID] = append(r.byProject[reg.sub.ProjectID], reg)
	return prev
}

// remove drops reg if it is still the current registration for its id and
// reports whether anything changed.
func (r *registry) remove(reg *registration) bool {
	if r.byID[reg.sub.ID] != reg {
		return false
	}
	delete(r.byID, reg.sub.ID)

	project := reg.sub.ProjectID
	regs := slices.DeleteFunc(r.byProject[project], func(x *registration) bool { return x == reg })
	if len(regs) == 0 {
		delete(r.byProject, project)
	} else {
		r.byProject[project] = regs
	}
	return true
}

func (r *registry) current(reg *registration) bool {
	return r.byID[reg.sub.ID] == reg
}

// match returns a snapshot of the registrations scoped to projectID.
func (r *registry) match(projectID string) []*registration {
	return slices.Clone(r.byProject[projectID])
}

func (r *registry) count(projectID string) int {
	return len(r.byProject[projectID])
}

func (r *registry) connected(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// drain removes every registration and returns them.
func (r *registry) drain() []*registration {
	all := make([]*registration, 0, len(r.byID))
	for _, regs := range r.byProject {
		all = append(all, regs...)
	}
	r.byID = make(map[string]*registration)
	r.byProject = make(map[string][]*registration)
	return all
}
