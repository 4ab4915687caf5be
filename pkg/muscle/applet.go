package muscle

import (
	"strings"

	"github.com/gregLibert/musclecard/pkg/iso7816"
	"github.com/gregLibert/musclecard/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// AppletInfo is the optional File Control Information returned on selection.
// Most MUSCLE builds answer 9000 with no data, in which case only DFName is
// filled from the requested AID.
type AppletInfo struct {
	DFName []byte `tlv:"84" fmt:"ascii"`
	Label  []byte `tlv:"50" fmt:"ascii"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// Describe renders the selection result.
func (a *AppletInfo) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== MUSCLE APPLET ===")
	tlv.WriteStructFields(&sb, "FCI", a)
	return sb.String()
}

// parseAppletInfo maps a 6F template, or bare FCI objects, onto AppletInfo.
func parseAppletInfo(data []byte) (*AppletInfo, error) {
	info := &AppletInfo{}
	if err := tlv.UnmarshalTemplate(data, "6F", info); err != nil {
		return nil, err
	}
	return info, nil
}

// SelectApplet selects the applet by AID; a nil aid selects DefaultAID.
// SELECT goes out with the interindustry class on the logical channel of the
// applet class, CLA 00 for the default B0.
func (c *Card) SelectApplet(aid []byte) (*AppletInfo, error) {
	const op = "select applet"

	if aid == nil {
		aid = DefaultAID
	}
	if len(aid) < 5 || len(aid) > 16 {
		return nil, invalidArgs(op, "AID length %d outside 5..16", len(aid))
	}

	cla, err := iso7816.NewInterindustryClass(false, iso7816.SMNone, c.cla.Channel)
	if err != nil {
		return nil, invalidArgs(op, "select class: %v", err)
	}
	resp, err := c.send(op, iso7816.SelectByAID(cla, aid))
	if err != nil {
		return nil, err
	}
	if err := c.classify(op, nil, resp.Status); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return &AppletInfo{DFName: aid}, nil
	}

	info, err := parseAppletInfo(resp.Data)
	if err != nil {
		return nil, unknownData(op, "FCI: %w", err)
	}
	if len(info.DFName) == 0 {
		info.DFName = aid
	}
	return info, nil
}
