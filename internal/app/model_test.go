package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/mediagate/internal/config"
	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/services"
	"github.com/j-veylop/mediagate/internal/services/quota"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model == nil {
		t.Fatal("NewModel returned nil")
	}
	if model.state == nil {
		t.Error("State should be initialized")
	}
	if model.activeTab != TabDashboard {
		t.Error("Default tab should be Dashboard")
	}
	if len(model.tabs) != 3 {
		t.Errorf("Should have 3 tabs placeholder, got %d", len(model.tabs))
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil)
	cmd := model.Init()
	if cmd == nil {
		t.Error("Init returned nil command")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model := NewModel(nil)
	msg := tea.WindowSizeMsg{Width: 100, Height: 50}

	newModel, _ := model.Update(msg)

	m, ok := newModel.(*Model)
	if !ok {
		t.Fatal("Update returned wrong model type")
	}

	if m.width != 100 {
		t.Errorf("Width = %d, want 100", m.width)
	}
	if m.height != 50 {
		t.Errorf("Height = %d, want 50", m.height)
	}
	if !m.ready {
		t.Error("Model should be ready after WindowSizeMsg")
	}
}

func TestModel_Update_TabSwitch(t *testing.T) {
	model := NewModel(nil)
	model.ready = true
	model.width = 100
	model.height = 50

	// Test switching to History
	msg := TabSwitchMsg{Tab: TabHistory}
	newModel, _ := model.Update(msg)
	m := newModel.(*Model)

	if m.activeTab != TabHistory {
		t.Errorf("ActiveTab = %v, want History", m.activeTab)
	}

	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}}
	model.activeTab = TabDashboard
	cmd := model.handleKeyMsg(keyMsg)
	if model.activeTab != TabHistory {
		t.Errorf("ActiveTab = %v after key 2, want History", model.activeTab)
	}
	if msg, ok := cmd().(TabSwitchMsg); !ok || msg.Tab != TabHistory {
		t.Error("key 2 should announce the switch to History")
	}

	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyShiftTab})
	if model.activeTab != TabDashboard {
		t.Errorf("ActiveTab = %v after shift+tab, want Dashboard", model.activeTab)
	}
	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyShiftTab})
	if model.activeTab != TabInfo {
		t.Errorf("ActiveTab = %v after wrapping, want Info", model.activeTab)
	}
}

func TestModel_Update_Tick(t *testing.T) {
	model := NewModel(nil)
	msg := TickMsg{Time: time.Now()}

	_, cmd := model.Update(msg)
	if cmd == nil {
		t.Error("TickMsg should return a command (next tick)")
	}
	if cmds := model.handleTick(msg); len(cmds) != 1 {
		t.Errorf("Tick without services should only schedule the next tick, got %d commands", len(cmds))
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil)

	// Not ready
	view := model.View()
	if !strings.Contains(view, "Loading...") {
		t.Error("View should show Loading when not ready")
	}

	// Ready
	model.ready = true
	model.width = 80
	model.height = 24

	view = model.View()
	// Should show tabs
	if !strings.Contains(view, "Dashboard") {
		t.Error("View should show Dashboard tab")
	}
	if !strings.Contains(view, "No view is attached") {
		t.Error("View should show placeholder text")
	}
	if strings.Contains(view, "today") {
		t.Error("Navbar should not show a budget before the first load")
	}

	snapshot := models.DefaultQuotaState(time.Now(), 1500)
	model.state.SetQuota(models.Remaining{
		Daily: 30, DailyLimit: 45, Monthly: 1485, MonthlyLimit: 1500, CurrentHour: 3,
	}, models.StatsSnapshot{}, &snapshot)
	model.width = 120
	view = ansi.Strip(model.View())
	for _, want := range []string{"30/45 today", "1485/1500 month", "03:00 closed"} {
		if !strings.Contains(view, want) {
			t.Errorf("Navbar missing %q", want)
		}
	}
	if strings.Contains(view, "updated") {
		t.Error("a fresh quota view should not be marked stale")
	}

	model.state.LastUpdated = time.Now().Add(-2 * time.Hour)
	model.width = 160
	if view = ansi.Strip(model.View()); !strings.Contains(view, "updated 2 hours ago") {
		t.Error("Navbar should mark a stale quota view")
	}
}

func TestModel_Help(t *testing.T) {
	model := NewModel(nil)
	model.ready = true
	model.width = 80
	model.height = 24

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !model.showHelp {
		t.Error("showHelp should be true")
	}

	view := model.View()
	if !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("View should show help modal")
	}

	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if model.showHelp {
		t.Error("showHelp should be false after toggle")
	}

	model.showHelp = true
	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("Esc should close the help")
	}
}

func TestModel_Notifications(t *testing.T) {
	model := NewModel(nil)

	msg := AddNotificationMsg{
		Message:  "Test Note",
		Type:     NotificationInfo,
		Duration: 0,
	}

	model.Update(msg)

	notifs := model.state.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifs))
	}

	// Test rendering
	model.ready = true
	model.width = 80
	model.height = 24
	view := model.View()
	if !strings.Contains(view, "Test Note") {
		t.Error("View should show notification")
	}
}

func TestModel_HandleServiceEvent(t *testing.T) {
	model := NewModel(nil)

	remaining := models.Remaining{Daily: 40, Monthly: 1400, DailyLimit: 45, MonthlyLimit: 1500}
	cmd := model.handleServiceEvent(services.QuotaChangedEvent{Remaining: remaining})
	if cmd == nil {
		t.Fatal("QuotaChangedEvent should forward a message")
	}
	if got := model.state.GetRemaining(); got != remaining {
		t.Errorf("Remaining = %+v, want %+v", got, remaining)
	}
	if _, ok := cmd().(QuotaChangedMsg); !ok {
		t.Error("QuotaChangedEvent should forward QuotaChangedMsg")
	}

	cmd = model.handleServiceEvent(services.QuotaChangedEvent{Remaining: remaining, Reloaded: true})
	var forwarded, notified bool
	for _, msg := range expandBatch(cmd) {
		switch msg := msg.(type) {
		case QuotaChangedMsg:
			forwarded = msg.Reloaded
		case AddNotificationMsg:
			notified = msg.Type == NotificationInfo
		}
	}
	if !forwarded || !notified {
		t.Errorf("reload should forward and notify, got forwarded=%v notified=%v", forwarded, notified)
	}

	batch := &models.Batch{ID: "b1", Admitted: true}
	cmd = model.handleServiceEvent(services.BatchCompletedEvent{Batch: batch})
	if model.state.GetLastBatch() != batch {
		t.Error("Last batch should be updated")
	}
	if msg, ok := cmd().(BatchCompletedMsg); !ok || msg.Batch != batch {
		t.Error("BatchCompletedEvent should forward BatchCompletedMsg")
	}

	cmd = model.handleServiceEvent(services.BatchDeniedEvent{BatchID: "b2", Reason: "daily limit reached"})
	if msg, ok := cmd().(AddNotificationMsg); !ok || msg.Type != NotificationWarning {
		t.Error("BatchDeniedEvent should raise a warning")
	}

	cmd = model.handleServiceEvent(services.ErrorEvent{Service: "test", Error: assertError(t, "boom")})
	if msg, ok := cmd().(AddNotificationMsg); !ok || msg.Type != NotificationError {
		t.Error("ErrorEvent should raise an error notification")
	}

	if cmd := model.handleServiceEvent(services.TaskFinishedEvent{}); cmd != nil {
		t.Error("TaskFinishedEvent should be ignored")
	}
}

func TestModel_Update_Messages(t *testing.T) {
	model := NewModel(nil)

	model.Update(StartLoadingMsg{Resource: "quota"})
	if !model.state.Loading.Quota {
		t.Error("Loading.Quota should be true")
	}

	snapshot := models.DefaultQuotaState(time.Now(), 1500)
	remaining := models.Remaining{Daily: 45, Monthly: 1500, DailyLimit: 45, MonthlyLimit: 1500}
	stats := models.StatsSnapshot{TotalRequests: 3}
	model.Update(QuotaLoadedMsg{Snapshot: &snapshot, Remaining: remaining, Stats: stats})
	if model.state.Loading.Quota {
		t.Error("Loading.Quota should clear once the quota is loaded")
	}
	if model.state.GetRemaining() != remaining {
		t.Error("Remaining should be updated")
	}
	if model.state.GetStats().TotalRequests != 3 {
		t.Error("Stats should be updated")
	}
	if model.state.GetSnapshot() == nil {
		t.Error("Snapshot should be set")
	}
	if model.state.Loading.Initial {
		t.Error("Initial loading should be false")
	}

	tests := []struct {
		name string
		msg  QuotaActionMsg
		want NotificationType
	}{
		{"Success", QuotaActionMsg{Action: "Daily usage reset"}, NotificationSuccess},
		{"Failure", QuotaActionMsg{Action: "Daily limit set to -1", Error: assertError(t, "negative")}, NotificationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := model.handleQuotaAction(tt.msg)
			if len(cmds) != 1 {
				t.Fatalf("Expected 1 command without services, got %d", len(cmds))
			}
			addMsg, ok := cmds[0]().(AddNotificationMsg)
			if !ok {
				t.Fatal("Command should return AddNotificationMsg")
			}
			if addMsg.Type != tt.want {
				t.Errorf("Type = %v, want %v", addMsg.Type, tt.want)
			}
			if !strings.Contains(addMsg.Message, tt.msg.Action) {
				t.Errorf("Message %q should mention %q", addMsg.Message, tt.msg.Action)
			}
		})
	}

	for _, res := range []string{"all", "quota", "archive"} {
		if cmds := model.handleRefresh(RefreshMsg{Resource: res}); len(cmds) != 0 {
			t.Errorf("refresh %q without services returned %d commands", res, len(cmds))
		}
	}

	model.Update(AddNotificationMsg{Message: "test", Type: NotificationInfo})
	model.Update(RemoveNotificationMsg{ID: "nonexistent"})
	model.Update(ClearExpiredNotificationsMsg{})
}

func TestModel_WithServices(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		QuotaStatePath:         filepath.Join(dir, "quota.json"),
		DatabasePath:           filepath.Join(dir, "archive.db"),
		DownloadDir:            filepath.Join(dir, "media"),
		MonthlyLimit:           1500,
		FetchMaxAttempts:       1,
		MaxConcurrentDownloads: 1,
	}

	mgr, err := services.NewManager(cfg, services.WithQuotaOptions(quota.WithWatch(false)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	model := NewModel(mgr)
	msg := loadQuotaCmd(mgr)()
	loaded, ok := msg.(QuotaLoadedMsg)
	if !ok {
		t.Fatalf("Expected QuotaLoadedMsg, got %T", msg)
	}
	if loaded.Remaining.MonthlyLimit != cfg.MonthlyLimit {
		t.Errorf("MonthlyLimit = %d, want %d", loaded.Remaining.MonthlyLimit, cfg.MonthlyLimit)
	}
	if loaded.Projection == nil {
		t.Error("Projection should be loaded")
	}
	model.Update(loaded)
	if model.state.GetSnapshot() == nil {
		t.Error("Snapshot should be set after load")
	}
	if model.state.GetProjection() == nil {
		t.Error("Projection should be set after load")
	}

	action := model.commands.ResetDailyUsage()()
	if am, ok := action.(QuotaActionMsg); !ok || am.Error != nil {
		t.Errorf("ResetDailyUsage returned %#v", action)
	}
	cmds := model.handleQuotaAction(QuotaActionMsg{Action: "noop"})
	if len(cmds) != 2 {
		t.Errorf("Expected notification and reload, got %d commands", len(cmds))
	}

	cmds = model.handleRefresh(RefreshMsg{Resource: "all"})
	if len(cmds) != 2 {
		t.Fatalf("refresh returned %d commands, want 2", len(cmds))
	}
	if msg, ok := cmds[0]().(StartLoadingMsg); !ok || msg.Resource != "quota" {
		t.Error("refresh should mark the quota view as loading first")
	}
	if cmds := model.handleRefresh(RefreshMsg{Resource: "archive"}); len(cmds) != 0 {
		t.Error("archive refresh belongs to the History tab")
	}

	// A load just happened, so the next tick inside the interval does not reload.
	now := time.Now()
	if cmds := model.handleTick(TickMsg{Time: now}); len(cmds) != 1 {
		t.Errorf("tick inside the refresh interval returned %d commands, want 1", len(cmds))
	}
	if cmds := model.handleTick(TickMsg{Time: now.Add(DefaultRefreshInterval)}); len(cmds) != 2 {
		t.Errorf("tick after the refresh interval returned %d commands, want 2", len(cmds))
	}
}

func TestModel_HandleSpinnerTick(t *testing.T) {
	model := NewModel(nil)
	// Spinner tick returns a command
	_, cmd := model.Update(spinner.TickMsg{})
	if cmd == nil {
		t.Error("Spinner tick should return command")
	}
}

// expandBatch runs cmd and flattens batched commands into their messages.
func expandBatch(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msgs = append(msgs, expandBatch(c)...)
	}
	return msgs
}

func assertError(t *testing.T, msg string) error {
	return &testError{msg}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestTabID_String(t *testing.T) {
	if TabDashboard.String() != "Dashboard" {
		t.Error("TabDashboard.String() mismatch")
	}
	if TabHistory.String() != "History" {
		t.Error("TabHistory.String() mismatch")
	}
	if TabInfo.String() != "Info" {
		t.Error("TabInfo.String() mismatch")
	}
	if TabID(999).String() != "Unknown" {
		t.Error("Unknown tab string mismatch")
	}
}

func TestTabID_NextPrev(t *testing.T) {
	tests := []struct {
		tab        TabID
		next, prev TabID
	}{
		{TabDashboard, TabHistory, TabInfo},
		{TabHistory, TabInfo, TabDashboard},
		{TabInfo, TabDashboard, TabHistory},
	}
	for _, tt := range tests {
		if got := tt.tab.Next(); got != tt.next {
			t.Errorf("%s.Next() = %s, want %s", tt.tab, got, tt.next)
		}
		if got := tt.tab.Prev(); got != tt.prev {
			t.Errorf("%s.Prev() = %s, want %s", tt.tab, got, tt.prev)
		}
	}
}

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	if len(km.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(km.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}

func TestNewModel_RefreshInterval(t *testing.T) {
	if got := NewModel(nil).refreshInterval; got != DefaultRefreshInterval {
		t.Errorf("refreshInterval = %v, want %v", got, DefaultRefreshInterval)
	}
}
