package roster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dtuma/processdash-sub018/internal/tree"
)

// Attribute names used on member nodes.
const (
	AttrName           = "name"
	AttrInitials       = "initials"
	AttrServerIdentity = "server_identity"
	AttrColor          = "color"
	AttrHoursPerWeek   = "hours_per_week"
	AttrStartWeek      = "start_week"
	AttrEndWeek        = "end_week"
	AttrExtra          = "extra"
	AttrZeroDay        = "zero_day"

	// ExceptionPrefix starts one attribute per schedule exception week, e.g.
	// "exception_12".
	ExceptionPrefix = "exception_"

	// SubteamPrefix starts one boolean marker per subteam the member is in,
	// e.g. "in_subteam:Backend".
	SubteamPrefix = "in_subteam:"
)

// ToTree converts a roster to the merge tree model. Placeholder rows are
// left out.
func ToTree(r *Roster) (*tree.Tree[int], error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	root := tree.Content{}
	root.Set(AttrZeroDay, nonEmpty(r.ZeroDay))
	t := tree.New(RootID, root)
	for _, m := range r.Members {
		if m.IsPlaceholder() {
			continue
		}
		if err := t.Add(RootID, m.ID, memberContent(m)); err != nil {
			return nil, fmt.Errorf("member %d: %w", m.ID, err)
		}
	}
	return t, nil
}

func memberContent(m Member) tree.Content {
	c := tree.Content{}
	c.Set(AttrName, nonEmpty(m.Name))
	c.Set(AttrInitials, nonEmpty(m.Initials))
	c.Set(AttrServerIdentity, nonEmpty(m.ServerIdentity))
	c.Set(AttrColor, nonEmpty(m.Color))
	if m.HoursPerWeek != 0 {
		c.Set(AttrHoursPerWeek, m.HoursPerWeek)
	}
	if m.StartWeek != nil {
		c.Set(AttrStartWeek, *m.StartWeek)
	}
	if m.EndWeek != nil {
		c.Set(AttrEndWeek, *m.EndWeek)
	}
	for week, hours := range m.Exceptions {
		c.Set(ExceptionPrefix+strconv.Itoa(week), hours)
	}
	for _, s := range m.Subteams {
		c.Set(SubteamPrefix+s, true)
	}
	if len(m.Extra) > 0 {
		c.Set(AttrExtra, copyStrings(m.Extra))
	}
	return c
}

// FromTree converts a merge tree back into a roster. Members are listed in
// tree order.
func FromTree(t *tree.Tree[int]) (*Roster, error) {
	r := &Roster{ZeroDay: t.Root().Content.StringAttr(AttrZeroDay)}
	for _, id := range t.Children(t.RootID()) {
		m, err := memberFromContent(id, t.Content(id))
		if err != nil {
			return nil, err
		}
		r.Members = append(r.Members, m)
	}
	return r, nil
}

func memberFromContent(id int, c tree.Content) (Member, error) {
	m := Member{
		ID:             id,
		Name:           c.StringAttr(AttrName),
		Initials:       c.StringAttr(AttrInitials),
		ServerIdentity: c.StringAttr(AttrServerIdentity),
		Color:          c.StringAttr(AttrColor),
	}
	var err error
	if v := c.Get(AttrHoursPerWeek); v != nil {
		if m.HoursPerWeek, err = toFloat(v); err != nil {
			return m, fmt.Errorf("member %d %s: %w", id, AttrHoursPerWeek, err)
		}
	}
	if m.StartWeek, err = optionalInt(c.Get(AttrStartWeek)); err != nil {
		return m, fmt.Errorf("member %d %s: %w", id, AttrStartWeek, err)
	}
	if m.EndWeek, err = optionalInt(c.Get(AttrEndWeek)); err != nil {
		return m, fmt.Errorf("member %d %s: %w", id, AttrEndWeek, err)
	}

	for _, key := range c.Keys() {
		switch {
		case strings.HasPrefix(key, ExceptionPrefix):
			week, err := strconv.Atoi(strings.TrimPrefix(key, ExceptionPrefix))
			if err != nil {
				return m, fmt.Errorf("member %d: bad exception key %q", id, key)
			}
			hours, err := toFloat(c.Get(key))
			if err != nil {
				return m, fmt.Errorf("member %d %s: %w", id, key, err)
			}
			if m.Exceptions == nil {
				m.Exceptions = make(map[int]float64)
			}
			m.Exceptions[week] = hours
		case strings.HasPrefix(key, SubteamPrefix):
			if on, _ := c.Get(key).(bool); on {
				m.Subteams = append(m.Subteams, strings.TrimPrefix(key, SubteamPrefix))
			}
		}
	}
	sort.Strings(m.Subteams)

	switch extra := c.Get(AttrExtra).(type) {
	case nil:
	case map[string]string:
		m.Extra = extra
	case map[string]any:
		m.Extra = make(map[string]string, len(extra))
		for k, v := range extra {
			m.Extra[k] = fmt.Sprint(v)
		}
	default:
		return m, fmt.Errorf("member %d %s: unexpected type %T", id, AttrExtra, extra)
	}
	if len(m.Extra) > 0 {
		m.Extra = copyStrings(m.Extra)
	}
	return m, nil
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func optionalInt(v any) (*int, error) {
	if v == nil {
		return nil, nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != float64(int(x)) {
			return nil, fmt.Errorf("not a whole number: %v", x)
		}
		n = int(x)
	default:
		return nil, fmt.Errorf("not a number: %T", v)
	}
	return &n, nil
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
