package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"atelier/internal/format"
	"atelier/internal/model"
	"atelier/internal/routes"
	"atelier/internal/store"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

type navItem struct {
	Name   string
	Label  string
	URL    string
	Active bool
}

type baseVM struct {
	Title     string
	Workspace string
	Nav       []navItem
	StreamURL string
}

func (s *Server) baseVM(title, active, streamURL string) baseVM {
	nav := make([]navItem, 0, len(model.Resources()))
	for _, res := range model.Resources() {
		nav = append(nav, navItem{
			Name:   res.Name,
			Label:  res.Label,
			URL:    routes.ListURL(res.Name, "", 1),
			Active: res.Name == active,
		})
	}
	return baseVM{
		Title:     title,
		Workspace: s.cfgSnapshot().Workspace,
		Nav:       nav,
		StreamURL: streamURL,
	}
}

type dashboardCard struct {
	Label string
	Count int
	URL   string
	New   string
}

type dashboardVM struct {
	baseVM
	Cards []dashboardCard
}

type rowVM struct {
	Record     model.Record
	Number     string
	Summary    string
	EditURL    string
	DestroyURL string
	// MoveUpURL / MoveDownURL are empty at the list edges.
	MoveUpURL   string
	MoveDownURL string
	RequestURL  string
}

type listVM struct {
	baseVM
	Resource    model.Resource
	Query       string
	Page        store.Page
	Rows        []rowVM
	NewURL      string
	PrevURL     string
	NextURL     string
	WorkflowURL string
	Modals      modalsVM
}

type fieldVM struct {
	Def     model.FieldDef
	Value   string
	Error   string
	Checked bool
	Preview template.HTML
}

type formVM struct {
	baseVM
	Resource   model.Resource
	RecordID   int64
	Action     string
	BackURL    string
	PreviewURL string
	Fields     []fieldVM
	Errors     model.FieldErrors
}

func (s *Server) dashboardCards(ctx context.Context) ([]dashboardCard, error) {
	counts, err := s.store().CountRecords(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]dashboardCard, 0, len(counts))
	for _, res := range model.Resources() {
		newURL, _ := routes.URL(routes.Name(res.Name, routes.New), 0)
		cards = append(cards, dashboardCard{
			Label: res.Label,
			Count: counts[res.Name],
			URL:   routes.ListURL(res.Name, "", 1),
			New:   newURL,
		})
	}
	return cards, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	cards, err := s.dashboardCards(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeHTMLTemplate(w, "dashboard", dashboardVM{
		baseVM: s.baseVM("Dashboard", "", routes.Prefix+"/events"),
		Cards:  cards,
	})
}

func (s *Server) handleDashboardEvents(w http.ResponseWriter, r *http.Request) {
	s.serveDatastarElementsStream(w, r, dashboardKey, "#dashboard-cards", datastar.ElementPatchModeOuter, func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cards, err := s.dashboardCards(ctx)
		if err != nil {
			return "", err
		}
		return s.renderTemplate("dashboard_cards", cards)
	})
}

func parsePage(r *http.Request) int {
	p, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

func (s *Server) buildListVM(ctx context.Context, res model.Resource, query string, page int) (listVM, error) {
	pg, err := s.store().ListRecords(ctx, res.Name, store.ListOptions{Query: query, Page: page})
	if err != nil {
		return listVM{}, err
	}
	vm := listVM{
		baseVM:   s.baseVM(res.Label, res.Name, routes.ListURL(res.Name, query, page)),
		Resource: res,
		Query:    query,
		Page:     pg,
	}
	vm.StreamURL = streamURL(res.Name, query, page)
	vm.NewURL, _ = routes.URL(routes.Name(res.Name, routes.New), 0)
	vm.WorkflowURL = workflowURL(res.Name, query, page)
	if pg.HasPrev() {
		vm.PrevURL = routes.ListURL(res.Name, query, pg.Page-1)
	}
	if pg.HasNext() {
		vm.NextURL = routes.ListURL(res.Name, query, pg.Page+1)
	}

	edit, _ := routes.Find(routes.Name(res.Name, routes.Edit))
	destroy, _ := routes.Find(routes.Name(res.Name, routes.Destroy))
	move, _ := routes.Find(routes.Name(res.Name, routes.Move))
	for i, rec := range pg.Records {
		row := rowVM{
			Record:     rec,
			Number:     format.OrderNumber(rec.ID),
			Summary:    rowSummary(res, rec),
			EditURL:    edit.URL(rec.ID),
			DestroyURL: destroy.URL(rec.ID),
			RequestURL: vm.WorkflowURL + "&action=request&id=" + strconv.FormatInt(rec.ID, 10),
		}
		// Reordering is only meaningful on the unfiltered list.
		if query == "" {
			if i > 0 {
				row.MoveUpURL = move.URL(rec.ID) + "?before=" + strconv.FormatInt(pg.Records[i-1].ID, 10)
			}
			if i < len(pg.Records)-1 {
				row.MoveDownURL = move.URL(rec.ID) + "?after=" + strconv.FormatInt(pg.Records[i+1].ID, 10)
			}
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm, nil
}

// rowSummary picks the second most useful column for the table.
func rowSummary(res model.Resource, rec model.Record) string {
	for _, f := range res.Fields {
		if f.Name == res.TitleField {
			continue
		}
		v := strings.TrimSpace(rec.Field(f.Name))
		if v == "" {
			continue
		}
		switch f.Kind {
		case model.FieldMarkdown:
			v = markdownExcerpt(v)
		case model.FieldMoney:
			if cents, err := format.ParseMoney(v); err == nil {
				v = format.Money(cents, rec.Field("currency"))
			}
		case model.FieldBool:
			if v != "true" {
				continue
			}
			v = f.Label
		}
		return v
	}
	return ""
}

func streamURL(resource, query string, page int) string {
	u := routes.ListURL(resource, query, page)
	base, q, _ := strings.Cut(u, "?")
	base += "/events"
	if q != "" {
		return base + "?" + q
	}
	return base
}

func workflowURL(resource, query string, page int) string {
	u := routes.Prefix + "/" + resource + "/workflow?page=" + strconv.Itoa(page)
	if query != "" {
		u += "&q=" + url.QueryEscape(query)
	}
	return u
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, res model.Resource) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if isDatastar(r) {
		s.patchFilteredList(w, r, res)
		return
	}
	vm, err := s.buildListVM(r.Context(), res, query, parsePage(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sid, err := s.sessionID(w, r); err == nil {
		if wf := s.workflows.peek(sid, res.Name); wf != nil {
			vm.Modals = wf.modals(vm.WorkflowURL)
		}
	}
	if vm.Modals.Resource == "" {
		vm.Modals = modalsVM{Resource: res.Name, Singular: res.Singular(), WorkflowURL: vm.WorkflowURL}
	}
	s.writeHTMLTemplate(w, "list", vm)
}

// patchFilteredList answers the debounced filter input: it swaps the table
// and rewrites the address bar to the filtered URL.
func (s *Server) patchFilteredList(w http.ResponseWriter, r *http.Request, res model.Resource) {
	var sig struct {
		Q string `json:"q"`
	}
	if err := datastar.ReadSignals(r, &sig); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	query := strings.TrimSpace(sig.Q)
	html, err := s.renderRecordsTable(res, query, 1)
	if err != nil {
		internalError(w, r, err)
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.PatchElements(html, datastar.WithSelector("#records"), datastar.WithMode(datastar.ElementPatchModeOuter))
	_ = sse.ExecuteScript(fmt.Sprintf(`history.replaceState(null, "", %q)`, routes.ListURL(res.Name, query, 1)))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, res model.Resource) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	page := parsePage(r)
	s.serveDatastarElementsStream(w, r, listKey(res.Name), "#records", datastar.ElementPatchModeOuter, func() (string, error) {
		return s.renderRecordsTable(res, query, page)
	})
}

func (s *Server) renderRecordsTable(res model.Resource, query string, page int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vm, err := s.buildListVM(ctx, res, query, page)
	if err != nil {
		return "", err
	}
	return s.renderTemplate("records_table", vm)
}

func (s *Server) buildFormVM(res model.Resource, recordID int64, values map[string]string, errs model.FieldErrors) formVM {
	vm := formVM{
		baseVM:   s.baseVM(res.Label, res.Name, ""),
		Resource: res,
		RecordID: recordID,
		BackURL:  routes.ListURL(res.Name, "", 1),
		Errors:   errs,
	}
	if recordID > 0 {
		vm.Title = "Edit " + res.Singular()
		vm.Action, _ = routes.URL(routes.Name(res.Name, routes.Update), recordID)
	} else {
		vm.Title = "New " + res.Singular()
		vm.Action, _ = routes.URL(routes.Name(res.Name, routes.Store), 0)
	}
	vm.PreviewURL = routes.Prefix + "/" + res.Name + "/preview"
	for _, f := range res.Fields {
		fv := fieldVM{Def: f, Value: values[f.Name], Error: errs[f.Name]}
		switch f.Kind {
		case model.FieldBool:
			fv.Checked = fv.Value == "true"
		case model.FieldMarkdown:
			fv.Preview = renderMarkdownHTML(fv.Value)
		}
		vm.Fields = append(vm.Fields, fv)
	}
	return vm
}

// formFields reads the resource's fields from a submitted form. Unchecked
// checkboxes are absent from the form and read as "false".
func formFields(r *http.Request, res model.Resource) map[string]string {
	_ = r.ParseForm()
	out := map[string]string{}
	for _, f := range res.Fields {
		vals, ok := r.PostForm[f.Name]
		switch {
		case f.Kind == model.FieldBool:
			out[f.Name] = strconv.FormatBool(ok && len(vals) > 0 && vals[0] != "" && vals[0] != "false")
		case ok && len(vals) > 0:
			out[f.Name] = vals[0]
		}
	}
	return out
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request, res model.Resource) {
	s.writeHTMLTemplate(w, "form", s.buildFormVM(res, 0, map[string]string{}, nil))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, res model.Resource) {
	fields := formFields(r, res)
	rec, err := s.store().CreateRecord(r.Context(), s.actorID(), res.Name, fields)
	if err != nil {
		s.writeFormError(w, r, res, 0, fields, err)
		return
	}
	s.notifyChanged(res.Name)
	s.log.Info("record created", zap.String("resource", res.Name), zap.Int64("id", rec.ID))
	http.Redirect(w, r, routes.ListURL(res.Name, "", 1), http.StatusSeeOther)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, res model.Resource) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.store().GetRecord(r.Context(), res.Name, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeHTMLTemplate(w, "form", s.buildFormVM(res, rec.ID, rec.Fields, nil))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, res model.Resource) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fields := formFields(r, res)
	if _, err := s.store().UpdateRecord(r.Context(), s.actorID(), res.Name, id, fields); err != nil {
		s.writeFormError(w, r, res, id, fields, err)
		return
	}
	s.notifyChanged(res.Name)
	http.Redirect(w, r, routes.ListURL(res.Name, "", 1), http.StatusSeeOther)
}

func (s *Server) writeFormError(w http.ResponseWriter, r *http.Request, res model.Resource, id int64, fields map[string]string, err error) {
	var fe model.FieldErrors
	switch {
	case errors.As(err, &fe):
		html, rerr := s.renderTemplate("form", s.buildFormVM(res, id, fields, fe))
		if rerr != nil {
			http.Error(w, rerr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(html))
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, "invalid record id")
		return 0, false
	}
	return id, true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isDatastar(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Datastar-Request")), "true")
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, res model.Resource) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	_ = r.ParseForm()
	var opts store.MoveOptions
	if v := strings.TrimSpace(r.Form.Get("before")); v != "" {
		opts.BeforeID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := strings.TrimSpace(r.Form.Get("after")); v != "" {
		opts.AfterID, _ = strconv.ParseInt(v, 10, 64)
	}
	if (opts.BeforeID == 0) == (opts.AfterID == 0) {
		badRequest(w, r, "exactly one of before or after is required")
		return
	}

	rec, err := s.store().MoveRecord(r.Context(), s.actorID(), res.Name, id, opts)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	s.notifyChanged(res.Name)
	switch {
	case wantsJSON(r):
		writeJSON(w, http.StatusOK, map[string]any{"data": rec})
	case isDatastar(r):
		w.WriteHeader(http.StatusNoContent)
	default:
		redirectBack(w, r, routes.ListURL(res.Name, "", 1))
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, res model.Resource) {
	var sig struct {
		Field string `json:"previewField"`
		Text  string `json:"previewText"`
	}
	if err := datastar.ReadSignals(r, &sig); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	f, ok := res.Field(sig.Field)
	if !ok || f.Kind != model.FieldMarkdown {
		badRequest(w, r, "not a markdown field")
		return
	}
	html, err := s.renderTemplate("markdown_preview", fieldVM{Def: f, Preview: renderMarkdownHTML(sig.Text)})
	if err != nil {
		internalError(w, r, err)
		return
	}
	sse := datastar.NewSSE(w, r)
	_ = sse.PatchElements(html)
}

// notifyChanged wakes local streams right away instead of waiting for the
// next poll.
func (s *Server) notifyChanged(resource string) {
	s.bc.hubFor(listKey(resource)).broadcast()
	s.bc.hubFor(dashboardKey).broadcast()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
