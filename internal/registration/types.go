package registration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LocationPrefix is the path segment every registration location lives under.
const LocationPrefix = "rd"

// DefaultVersion is assumed when a client omits the lwm2m parameter.
const DefaultVersion = "1.0"

// Client is one registered LWM2M endpoint.
//
// Records stored in the Registry are never mutated in place: Update replaces
// the record with a modified copy, so a *Client obtained from Lookup is a
// consistent snapshot.
type Client struct {
	// Identity
	Endpoint string `json:"endpoint"`
	Location string `json:"location"`

	// Registration parameters
	Lifetime  uint32  `json:"lifetime"`
	Binding   Binding `json:"binding"`
	SMSNumber string  `json:"sms_number,omitempty"`
	Version   string  `json:"lwm2m_version"`

	// RootPath is the alternate path announced with rt="oma.lwm2m", or "/".
	RootPath string       `json:"root_path"`
	Objects  []ObjectLink `json:"objects"`

	// Timestamps
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DeepCopy returns an independent copy of the Client.
func (c *Client) DeepCopy() *Client {
	if c == nil {
		return nil
	}
	cpy := *c
	cpy.Objects = copyLinks(c.Objects)
	return &cpy
}

// Path returns the location path the client addresses Update/Deregister to.
//
// Example: /rd/5f0c1e7a-...
func (c *Client) Path() string {
	return "/" + LocationPrefix + "/" + c.Location
}

// LifetimeDuration returns the lease length as a Duration.
func (c *Client) LifetimeDuration() time.Duration {
	return time.Duration(c.Lifetime) * time.Second
}

// Expired reports whether the lease has lapsed at now (ExpiresAt <= now).
func (c *Client) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Binding is the transport/queueing mode negotiated at registration.
type Binding string

// Binding modes accepted in the b parameter.
const (
	BindingUDP         Binding = "U"
	BindingUDPQueue    Binding = "UQ"
	BindingSMS         Binding = "S"
	BindingSMSQueue    Binding = "SQ"
	BindingUDPSMS      Binding = "US"
	BindingUDPQueueSMS Binding = "UQS"
)

// AllBindings returns every accepted binding mode.
func AllBindings() []Binding {
	return []Binding{
		BindingUDP,
		BindingUDPQueue,
		BindingSMS,
		BindingSMSQueue,
		BindingUDPSMS,
		BindingUDPQueueSMS,
	}
}

// Queued reports whether requests to the client must be held until it is
// next reachable.
func (b Binding) Queued() bool {
	return strings.Contains(string(b), "Q")
}

// UsesSMS reports whether the binding includes the SMS transport.
func (b Binding) UsesSMS() bool {
	return strings.Contains(string(b), "S")
}

// ObjectLink is one entry of the object/instance list a client reports.
type ObjectLink struct {
	ObjectID    uint16   `json:"object_id"`
	InstanceID  *uint16  `json:"instance_id,omitempty"`
	ResourceIDs []uint16 `json:"resource_ids,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// String renders the link in CoRE Link Format, e.g. </3/0>. A link carrying
// resources renders as one resource link each, e.g. </3/0/1>,</3/0/2>, which
// parses back to the same ObjectLink.
func (l ObjectLink) String() string {
	var b strings.Builder
	writeTarget := func(resource *uint16) {
		b.WriteString("</")
		b.WriteString(strconv.Itoa(int(l.ObjectID)))
		if l.InstanceID != nil {
			fmt.Fprintf(&b, "/%d", *l.InstanceID)
			if resource != nil {
				fmt.Fprintf(&b, "/%d", *resource)
			}
		}
		b.WriteString(">")
		if l.Version != "" {
			fmt.Fprintf(&b, ";ver=%s", l.Version)
		}
	}

	if len(l.ResourceIDs) == 0 || l.InstanceID == nil {
		writeTarget(nil)
		return b.String()
	}
	for i := range l.ResourceIDs {
		if i > 0 {
			b.WriteString(",")
		}
		writeTarget(&l.ResourceIDs[i])
	}
	return b.String()
}

func copyLinks(links []ObjectLink) []ObjectLink {
	if links == nil {
		return nil
	}
	cpy := make([]ObjectLink, len(links))
	for i, l := range links {
		cpy[i] = l
		if l.InstanceID != nil {
			id := *l.InstanceID
			cpy[i].InstanceID = &id
		}
		if l.ResourceIDs != nil {
			cpy[i].ResourceIDs = append([]uint16(nil), l.ResourceIDs...)
		}
	}
	return cpy
}

// RegisterParams is the normalised parameter set of a Register request.
type RegisterParams struct {
	Endpoint  string
	Lifetime  uint32
	Binding   Binding
	SMSNumber string
	Version   string
	RootPath  string
	Objects   []ObjectLink
}

// UpdateParams holds the optional fields of an Update request.
// Nil fields keep the registered value.
type UpdateParams struct {
	Lifetime  *uint32
	Binding   *Binding
	SMSNumber *string
	RootPath  *string
	Objects   []ObjectLink
}

// apply returns a copy of c with the update applied. Timestamps are left to
// the caller.
func (p UpdateParams) apply(c *Client) *Client {
	next := c.DeepCopy()
	if p.Lifetime != nil {
		next.Lifetime = *p.Lifetime
	}
	if p.Binding != nil {
		next.Binding = *p.Binding
	}
	if p.SMSNumber != nil {
		next.SMSNumber = *p.SMSNumber
	}
	if p.RootPath != nil {
		next.RootPath = *p.RootPath
	}
	if p.Objects != nil {
		next.Objects = copyLinks(p.Objects)
	}
	return next
}
