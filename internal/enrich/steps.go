package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/internal/settings"
	"github.com/sells-group/lead-enrichment/pkg/skiptrace"
	"github.com/sells-group/lead-enrichment/pkg/telnyx"
)

// extractProfile reads what the row already knows.
func (o *Orchestrator) extractProfile(st *leadState) {
	r := &st.res
	r.FirstName, r.LastName = st.row.Names()
	st.leadCity, st.leadState = st.row.CityState()
	r.City, r.State = st.leadCity, st.leadState
	r.ZIP = st.row.Get(lead.FieldZip)
	r.Address = st.row.Get(lead.FieldAddress)
	if p, ok := lead.NormalizePhone(st.row.Get(lead.FieldPhone)); ok {
		r.Phone = p
	}
	if e := st.row.Get(lead.FieldEmail); lead.ValidEmail(e) {
		r.Email = strings.TrimSpace(e)
	}
	if a, ok := ageValue(st.row.Get(lead.FieldAge)); ok {
		r.Age = a
	}
	r.DOB = st.row.Get(lead.FieldDOB)
}

func (o *Orchestrator) resolveZIP(st *leadState) {
	if st.res.ZIP != "" || !o.enabled(settings.APIPostal) {
		return
	}
	zip, src, ok := o.deps.Postal.ResolveZIP(st.res.City, st.res.State)
	if !ok {
		return
	}
	st.res.ZIP = zip
	st.log.Debug("enrich: zip resolved", zap.String("zip", zip), zap.String("source", string(src)))
}

// discoverPhone searches by name and locality when the row has no usable
// phone. A phone embedded in the search result saves the detail call.
func (o *Orchestrator) discoverPhone(ctx context.Context, st *leadState) {
	r := &st.res
	if r.Phone != "" || o.deps.SkipTrace == nil || !o.enabled(settings.APISkipTraceSearch) {
		return
	}
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if r.FirstName == "" || r.LastName == "" {
		return
	}

	resp, err := call(ctx, o, ServiceSkipTrace, "search", o.deps.SkipTraceLimiter, o.cfg.SearchTimeout,
		func(ctx context.Context) (*skiptrace.SearchResponse, error) {
			return o.deps.SkipTrace.SearchByName(ctx, name, locality(r.City, r.State, r.ZIP))
		})
	if err != nil {
		st.fail(StepPhoneDiscovery, err)
		return
	}
	r.Raw.Search = resp.Raw

	person, ok := searchCandidate(resp, st.leadState)
	if !ok {
		st.log.Debug("enrich: no search candidates")
		return
	}
	st.personID = person.PersonID.String()
	if age, ok := searchAge(person); ok {
		st.cachedAge = age
	}
	st.foundCity, st.foundState = searchLocality(person)
	if p, ok := searchPhone(person); ok {
		r.Phone = p
	}
	if e, ok := searchEmail(person); ok && r.Email == "" {
		r.Email = e
	}
	if r.Phone != "" || st.personID == "" || !o.enabled(settings.APISkipTraceDetails) {
		return
	}

	detail, err := o.personDetails(ctx, st)
	if err != nil {
		st.fail(StepPhoneDiscovery, err)
		return
	}
	r.Raw.Detail = detail.Raw
	if p, ok := detailPhone(detail); ok {
		r.Phone = p
	}
	if e, ok := detailEmail(detail); ok && r.Email == "" {
		r.Email = e
	}
	if addr, ok := detailAddress(detail); ok {
		fillEmpty(&r.Address, addr.Street)
		fillEmpty(&r.City, addr.Locality)
		fillEmpty(&r.State, addr.Region)
		fillEmpty(&r.ZIP, addr.Postal)
		fillEmpty(&st.foundCity, addr.Locality)
		fillEmpty(&st.foundState, addr.Region)
	}
}

func (o *Orchestrator) personDetails(ctx context.Context, st *leadState) (*skiptrace.DetailsResponse, error) {
	st.detailCalled = true
	detail, err := call(ctx, o, ServiceSkipTrace, "details", o.deps.SkipTraceLimiter, o.cfg.DetailTimeout,
		func(ctx context.Context) (*skiptrace.DetailsResponse, error) {
			return o.deps.SkipTrace.PersonDetails(ctx, st.personID)
		})
	if err != nil {
		return nil, err
	}
	st.detail = detail
	return detail, nil
}

func (o *Orchestrator) phoneIntel(ctx context.Context, st *leadState) {
	r := &st.res
	if r.Phone == "" || o.deps.Telnyx == nil || !o.enabled(settings.APITelnyx) {
		return
	}
	resp, err := call(ctx, o, ServiceTelnyx, "lookup", o.deps.TelnyxLimiter, o.cfg.SearchTimeout,
		func(ctx context.Context) (*telnyx.LookupResponse, error) {
			return o.deps.Telnyx.Lookup(ctx, r.Phone)
		})
	if err != nil {
		st.fail(StepTelnyx, err)
		return
	}
	r.Raw.PhoneIntel = resp.Raw
	if lt, ok := lineType(resp); ok {
		r.LineType = lt
	}
	if c, ok := carrierName(resp); ok {
		r.Carrier = c
	}
	r.CarrierType = resp.Data.Carrier.Type
	r.NormalizedCarrier = resp.Data.Carrier.NormalizedCarrier
}

// enrichAge fills age for gated leads. A cached search age or the discovery
// detail payload is used before a new detail call, and a new call is made
// only when discovery never issued one.
func (o *Orchestrator) enrichAge(ctx context.Context, st *leadState) {
	r := &st.res
	if !r.GatePassed || r.Age != "" || r.DOB != "" {
		return
	}
	if r.FirstName == "" || r.LastName == "" || r.Phone == "" {
		return
	}
	if st.cachedAge != "" {
		r.Age = st.cachedAge
		return
	}
	if st.detail == nil {
		if st.personID == "" || st.detailCalled || o.deps.SkipTrace == nil || !o.enabled(settings.APISkipTraceDetails) {
			return
		}
		detail, err := o.personDetails(ctx, st)
		if err != nil {
			st.fail(StepAge, err)
			return
		}
		r.Raw.AgeDetail = detail.Raw
	}
	if a, ok := detailAge(st.detail); ok {
		r.Age = a
	}
	if d, ok := detailDOB(st.detail); ok {
		r.DOB = d
	}
}

func fillEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

// locality formats the search location: "City, ST", else ZIP, else state.
func locality(city, state, zip string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case zip != "":
		return zip
	default:
		return state
	}
}
