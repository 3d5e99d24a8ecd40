package workflow

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// titles are the name prefixes stripped from raw staff names.
var titles = map[string]bool{
	"Ms": true, "Ms.": true,
	"Mr": true, "Mr.": true,
	"Mrs": true, "Mrs.": true,
	"Miss": true, "Miss.": true,
	"Dr": true, "Dr.": true,
	"Prof": true, "Prof.": true,
	"Sir": true, "Dame": true,
}

// StripTitle removes a leading title from a raw staff name:
// "Ms Alannah Courtnay" becomes "Alannah Courtnay".
func StripTitle(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) > 1 && titles[parts[0]] {
		return strings.Join(parts[1:], " ")
	}
	return strings.TrimSpace(fullName)
}

// NormalizePhone canonicalizes a phone number for comparison: "+", "-" and
// spaces are dropped and an Australian leading 0 becomes the 61 country
// prefix, so "0412 345 678" and "+61412345678" compare equal.
func NormalizePhone(phone string) string {
	n := strings.NewReplacer("+", "", "-", "", " ", "").Replace(phone)
	if strings.HasPrefix(n, "0") {
		n = "61" + n[1:]
	}
	return n
}

// PhonesMatch reports whether two phone numbers are the same after
// normalization.
func PhonesMatch(a, b string) bool {
	return NormalizePhone(a) == NormalizePhone(b)
}

// parseStaffRow reads the first row of the staff results grid. Column
// order: checkbox, id, full name, team, email, mobile.
func parseStaffRow(doc *goquery.Document) (Staff, bool) {
	var staff Staff
	found := false

	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		tds := row.Find("td")
		if tds.Length() < 6 {
			return true
		}
		cell := func(i int) string {
			return strings.TrimSpace(tds.Eq(i).Text())
		}
		staff = Staff{
			ID:       cell(1),
			FullName: StripTitle(cell(2)),
			Team:     cell(3),
			Email:    cell(4),
			Mobile:   cell(5),
		}
		found = staff.ID != "" || staff.FullName != ""
		return false
	})

	return staff, found
}

// parseShiftRows reads the shift grid. Each row is: type, staff name,
// client info of the form "Client Name on DD-MM-YYYY at HH:MM AM", with
// the shift id carried in the row's data-href roster link.
func parseShiftRows(doc *goquery.Document) []Shift {
	var shifts []Shift

	doc.Find("tr[role=row]").Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < 3 {
			return
		}

		shift := Shift{
			Type: strings.TrimSpace(tds.Eq(0).Text()),
		}

		if href, ok := row.Attr("data-href"); ok {
			if idx := strings.LastIndexByte(href, '/'); idx >= 0 {
				shift.ShiftID = href[idx+1:]
			}
		}

		info := strings.TrimSpace(tds.Eq(2).Text())
		client, date, tm := parseClientInfo(info)
		shift.ClientName = client
		shift.Date = date
		shift.Time = tm

		if shift.ClientName == "" && shift.ShiftID == "" {
			return
		}
		shifts = append(shifts, shift)
	})

	return shifts
}

// parseClientInfo splits "Client Name on DD-MM-YYYY at HH:MM AM" into its
// parts, converting the date to the internal ISO layout. An unparseable
// date yields an empty date string; the shift is kept but excluded from
// range filtering.
func parseClientInfo(info string) (client, isoDate, tm string) {
	client = info

	onIdx := strings.Index(info, " on ")
	if onIdx < 0 {
		return strings.TrimSpace(client), "", ""
	}
	client = strings.TrimSpace(info[:onIdx])
	rest := info[onIdx+len(" on "):]

	atIdx := strings.Index(rest, " at ")
	rawDate := rest
	if atIdx >= 0 {
		rawDate = rest[:atIdx]
		tm = strings.TrimSpace(rest[atIdx+len(" at "):])
	}

	if d, err := time.Parse(SiteDate, strings.TrimSpace(rawDate)); err == nil {
		isoDate = d.Format(ISODate)
	}
	return client, isoDate, tm
}
