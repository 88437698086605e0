// mocksite is a tiny fake reservation site for exercising the full booking
// flow locally: login, a paginated calendar, a booking form and a confirmation
// page. Scenarios let one process simulate the interesting site states.
package main

import (
	"flag"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"
)

type site struct {
	scenario string // available | soldout | notfound | failbooking
	target   time.Time
	base     time.Time // first month shown on the calendar
}

func main() {
	addr := flag.String("addr", ":8091", "listen address")
	scenario := flag.String("scenario", "available", "available|soldout|notfound|failbooking")
	dateStr := flag.String("date", "", "target date YYYY-MM-DD (default: tomorrow)")
	flag.Parse()

	target := time.Now().AddDate(0, 0, 1)
	if *dateStr != "" {
		t, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.Fatalf("bad -date: %v", err)
		}
		target = t
	}

	s := &site{
		scenario: *scenario,
		target:   target,
		base:     time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCalendar)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/book", s.handleBook)
	mux.HandleFunc("/checkout", s.handleCheckout)
	mux.HandleFunc("/confirm", s.handleConfirm)

	log.Printf("mocksite on %s scenario=%s target=%s", *addr, s.scenario, s.target.Format("2006-01-02"))
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func loggedIn(r *http.Request) bool {
	c, err := r.Cookie("session")
	return err == nil && c.Value != ""
}

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html><body>
<h1>Alta Mock Parking</h1>
<form method="POST" action="/login">
  <input type="email" name="email" placeholder="Email">
  <input type="password" name="password" placeholder="Password">
  <button type="submit">Log In</button>
</form>
</body></html>`))

var landingPage = template.Must(template.New("landing").Parse(`<!doctype html>
<html><body>
<h1>Alta Mock Parking</h1>
<p>Reserve your parking spot.</p>
<a href="/login">Log In</a>
</body></html>`))

func (s *site) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if r.FormValue("email") == "" || r.FormValue("password") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "email and password required")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "mock", Path: "/"})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	_ = loginPage.Execute(w, nil)
}

type calendarData struct {
	Month    string
	Cells    []cellData
	NextHref string
	SoldOut  bool
}

type cellData struct {
	Date  string
	Day   int
	Class string
	Href  string
}

var calendarPage = template.Must(template.New("calendar").Parse(`<!doctype html>
<html><body>
<h1>Reserve Parking - {{.Month}}</h1>
{{if .SoldOut}}<p class="notice">Sold Out for some dates this month.</p>{{end}}
<table><tr>
{{range .Cells}}
  {{if .Href}}<td role="gridcell"><a data-date="{{.Date}}" class="calendar-day {{.Class}}" href="{{.Href}}">{{.Day}}</a></td>
  {{else}}<td role="gridcell"><span data-date="{{.Date}}" class="calendar-day {{.Class}}">{{.Day}}</span></td>{{end}}
{{end}}
</tr></table>
<a aria-label="Next month" href="{{.NextHref}}">Next</a>
</body></html>`))

func (s *site) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !loggedIn(r) {
		_ = landingPage.Execute(w, nil)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("m"))
	month := s.base.AddDate(0, offset, 0)

	data := calendarData{
		Month:    month.Format("January 2006"),
		NextHref: "/?m=" + strconv.Itoa(offset+1),
	}
	days := month.AddDate(0, 1, -1).Day()
	for d := 1; d <= days; d++ {
		date := time.Date(month.Year(), month.Month(), d, 0, 0, 0, 0, time.UTC)
		iso := date.Format("2006-01-02")
		cell := cellData{Date: iso, Day: d, Class: "available", Href: "/book?date=" + iso}

		isTarget := iso == s.target.Format("2006-01-02")
		switch {
		case isTarget && s.scenario == "soldout":
			cell.Class = "unavailable"
			cell.Href = ""
			data.SoldOut = true
		case isTarget && s.scenario == "notfound":
			continue
		}
		data.Cells = append(data.Cells, cell)
	}
	_ = calendarPage.Execute(w, data)
}

var bookPage = template.Must(template.New("book").Parse(`<!doctype html>
<html><body>
<h1>Parking for {{.Date}}</h1>
<p>Single day parking reservation.</p>
<a href="/checkout?date={{.Date}}">Reserve</a>
</body></html>`))

var checkoutPage = template.Must(template.New("checkout").Parse(`<!doctype html>
<html><body>
<h1>Checkout - {{.Date}}</h1>
<form method="POST" action="/confirm">
  <input type="hidden" name="date" value="{{.Date}}">
  <input name="passCode" placeholder="Season pass code">
  <input name="plate" placeholder="License plate">
  <button type="submit">Confirm Reservation</button>
</form>
</body></html>`))

func (s *site) handleBook(w http.ResponseWriter, r *http.Request) {
	if !loggedIn(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	_ = bookPage.Execute(w, map[string]string{"Date": date})
}

func (s *site) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if !loggedIn(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	_ = checkoutPage.Execute(w, map[string]string{"Date": date})
}

func (s *site) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.scenario == "failbooking" {
		fmt.Fprint(w, `<!doctype html><html><body><h1>Something went wrong</h1><p>Please try again later.</p></body></html>`)
		return
	}
	fmt.Fprintf(w, `<!doctype html><html><body>
<h1>Your reservation is confirmed!</h1>
<p>Confirmation number: MOCK-%d</p>
</body></html>`, time.Now().Unix())
}
