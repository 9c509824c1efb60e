package handler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sahayak/pkg/bus"
	providertypes "sahayak/pkg/provider/types"
	"sahayak/pkg/state"
)

type fakeCompleter struct {
	reply string
	err   error
	last  providertypes.CompletionRequest
}

func (f *fakeCompleter) Health(context.Context) error { return nil }

func (f *fakeCompleter) Complete(_ context.Context, req providertypes.CompletionRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

func onboardedState() *state.ConversationState {
	return &state.ConversationState{
		UserID:     "user-1",
		Language:   "English",
		Occupation: "mason",
		Location:   state.Location{District: "NADIA", Block: "HARINGHATA", Village: "MOLLABELIA"},
	}
}

func TestEmergencyIsDeterministic(t *testing.T) {
	t.Parallel()

	h := NewEmergency()
	st := &state.ConversationState{UserID: "u", Language: "Hindi"}

	update, output, err := h.Handle(context.Background(), st, bus.InboundEvent{Text: "HELP!!"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !output.Done {
		t.Fatal("emergency reply must close the turn")
	}
	if !strings.Contains(output.Text, "112") {
		t.Fatalf("reply %q missing helpline number", output.Text)
	}
	if update.Emergency == nil || !*update.Emergency {
		t.Fatal("emergency flag not set")
	}
	if update.LastRoute != NameEmergency {
		t.Fatalf("LastRoute = %q", update.LastRoute)
	}
}

func TestEmergencyUnknownLanguageFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	h := NewEmergency()
	st := &state.ConversationState{UserID: "u", Language: "Tamil"}

	_, output, err := h.Handle(context.Background(), st, bus.InboundEvent{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if output.Text != emergencyText["English"] {
		t.Fatalf("reply = %q, want English fallback", output.Text)
	}
}

func TestGeneralWithoutProviderUsesStaticGreeting(t *testing.T) {
	t.Parallel()

	h := NewGeneral(nil, "")
	st := &state.ConversationState{UserID: "u"}

	update, output, err := h.Handle(context.Background(), st, bus.InboundEvent{Text: "hello"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if output.Text != staticGreeting["Bengali"] {
		t.Fatalf("reply = %q, want default-language greeting", output.Text)
	}
	if !output.Done || update.LastRoute != NameGeneral {
		t.Fatalf("output = %+v, update = %+v", output, update)
	}
}

func TestGeneralPromptsInUserLanguage(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{reply: "friendly reply"}
	h := NewGeneral(client, "gpt-4o-mini")

	_, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "what can you do?"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if output.Text != "friendly reply" {
		t.Fatalf("reply = %q", output.Text)
	}
	if !strings.Contains(client.last.System, "English") {
		t.Fatalf("persona %q missing user language", client.last.System)
	}
	if client.last.Prompt != "what can you do?" {
		t.Fatalf("prompt = %q", client.last.Prompt)
	}
}

func TestJobsSkillsFallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		occupation string
		want       string
	}{
		{"empty", "", "labor"},
		{"none literal", "None", "labor"},
		{"kept", "tailor", "tailor"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotSkills string
			finder := jobFinderFunc(func(_ context.Context, skills string, _ state.Location) ([]Job, error) {
				gotSkills = skills
				return nil, nil
			})

			st := onboardedState()
			st.Occupation = tc.occupation

			h := NewJobs(finder, nil, "")
			if _, _, err := h.Handle(context.Background(), st, bus.InboundEvent{Text: "any work?"}); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if gotSkills != tc.want {
				t.Fatalf("skills = %q, want %q", gotSkills, tc.want)
			}
		})
	}
}

type jobFinderFunc func(ctx context.Context, skills string, loc state.Location) ([]Job, error)

func (f jobFinderFunc) Match(ctx context.Context, skills string, loc state.Location) ([]Job, error) {
	return f(ctx, skills, loc)
}

func TestJobsNoMatchesStillCloses(t *testing.T) {
	t.Parallel()

	finder := &StaticJobFinder{}
	h := NewJobs(finder, nil, "")

	update, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "kaj chai"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !output.Done {
		t.Fatal("empty result must still close the turn")
	}
	if !strings.Contains(output.Text, "No openings") {
		t.Fatalf("reply = %q", output.Text)
	}
	if update.LastRoute != NameJobs {
		t.Fatalf("LastRoute = %q", update.LastRoute)
	}
}

func TestJobsFormatsMatchesWithoutProvider(t *testing.T) {
	t.Parallel()

	finder := &StaticJobFinder{
		ByVillage: map[string][]Job{
			"MOLLABELIA": {
				{Title: "Mason", Site: "Canal repair", Village: "MOLLABELIA", DailyPay: "Rs 450"},
				{Title: "Helper", Site: "Brick kiln", Village: "MOLLABELIA", DailyPay: "Rs 350"},
			},
		},
	}
	h := NewJobs(finder, nil, "")

	_, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "work"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, want := range []string{"1. Mason", "2. Helper", "Rs 450", "Mollabelia"} {
		if !strings.Contains(output.Text, want) {
			t.Fatalf("reply %q missing %q", output.Text, want)
		}
	}
}

func TestStaticJobFinderFallsBackToBlock(t *testing.T) {
	t.Parallel()

	finder := &StaticJobFinder{
		ByBlock: map[string][]Job{
			"HARINGHATA": {{Title: "Loader", Site: "Mandi", Village: "NAGARUKHRA", DailyPay: "Rs 400"}},
		},
	}

	jobs, err := finder.Match(context.Background(), "labor", state.Location{District: "NADIA", Block: "HARINGHATA", Village: "MOLLABELIA"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Title != "Loader" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestLegalQueryCarriesOccupationAndDistrict(t *testing.T) {
	t.Parallel()

	var gotQuery string
	source := complianceFunc(func(_ context.Context, query string) (string, error) {
		gotQuery = query
		return "minimum wage for masons is Rs 454/day", nil
	})

	h := NewLegal(source, nil, "")
	_, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "I get 300 a day"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(gotQuery, "mason") || !strings.Contains(gotQuery, "Nadia") {
		t.Fatalf("query = %q", gotQuery)
	}
	if !strings.Contains(output.Text, "Rs 454/day") || !output.Done {
		t.Fatalf("output = %+v", output)
	}
}

type complianceFunc func(ctx context.Context, query string) (string, error)

func (f complianceFunc) Lookup(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

func TestLegalLookupErrorDiscardsUpdate(t *testing.T) {
	t.Parallel()

	source := complianceFunc(func(context.Context, string) (string, error) {
		return "", errors.New("index offline")
	})

	h := NewLegal(source, nil, "")
	update, _, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "wage check"})
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if !update.IsZero() {
		t.Fatalf("update = %+v, want zero", update)
	}
}

type captureSink struct {
	report SafetyReport
	err    error
}

func (s *captureSink) Submit(_ context.Context, report SafetyReport) (string, error) {
	s.report = report
	return "WB-0042", s.err
}

func TestReportingNormalizesWithProvider(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{reply: "Category: Infrastructure\nDescription: Scaffolding at the canal site is broken."}
	sink := &captureSink{}
	h := NewReporting(sink, client, "gpt-4o-mini")

	_, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "bhara bhenge gechhe"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sink.report.Category != "Infrastructure" {
		t.Fatalf("category = %q", sink.report.Category)
	}
	if !strings.Contains(sink.report.Description, "Scaffolding") {
		t.Fatalf("description = %q", sink.report.Description)
	}
	if sink.report.Village != "MOLLABELIA" || sink.report.District != "NADIA" {
		t.Fatalf("location = %+v", sink.report)
	}
	if !strings.Contains(output.Text, "WB-0042") {
		t.Fatalf("reply %q missing reference", output.Text)
	}
}

func TestReportingSurvivesNormalizationFailure(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{err: errors.New("model timeout")}
	sink := &captureSink{}
	h := NewReporting(sink, client, "gpt-4o-mini")

	_, output, err := h.Handle(context.Background(), onboardedState(), bus.InboundEvent{Text: "raw complaint text"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sink.report.Category != "General Safety" || sink.report.Description != "raw complaint text" {
		t.Fatalf("report = %+v, want raw fallback", sink.report)
	}
	if !output.Done {
		t.Fatal("report turn must close")
	}
}

func TestReportingPinOverridesProfileCoordinates(t *testing.T) {
	t.Parallel()

	staleLat, staleLon := 22.0, 88.0
	st := onboardedState()
	st.Latitude, st.Longitude = &staleLat, &staleLon

	sink := &captureSink{}
	h := NewReporting(sink, nil, "")

	event := bus.InboundEvent{
		Kind: bus.KindLocationPin,
		Text: "unsafe crossing here",
		Pin:  &bus.LocationPin{Latitude: 22.96, Longitude: 88.53},
	}
	if _, _, err := h.Handle(context.Background(), st, event); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sink.report.Latitude == nil || *sink.report.Latitude != 22.96 {
		t.Fatalf("latitude = %v, want pin value", sink.report.Latitude)
	}
	if sink.report.Longitude == nil || *sink.report.Longitude != 88.53 {
		t.Fatalf("longitude = %v, want pin value", sink.report.Longitude)
	}
}
