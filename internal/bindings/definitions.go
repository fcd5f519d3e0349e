package bindings

import "strings"

const (
	ActionQuit            ActionID = "quit"
	ActionFocusQuery      ActionID = "focus_query"
	ActionCycleFocus      ActionID = "cycle_focus"
	ActionCycleFocusBack  ActionID = "cycle_focus_back"
	ActionNextTab         ActionID = "next_tab"
	ActionPrevTab         ActionID = "prev_tab"
	ActionToggleFeed      ActionID = "toggle_feed"
	ActionClearEntries    ActionID = "clear_entries"
	ActionCopyEntry       ActionID = "copy_entry"
	ActionToggleSelectors ActionID = "toggle_selectors"
	ActionShowTraffic     ActionID = "show_traffic"
	ActionShowStats       ActionID = "show_stats"
	ActionShowOAS         ActionID = "show_oas"
	ActionShowReplay      ActionID = "show_replay"
	ActionShowHistory     ActionID = "show_history"
	ActionToggleSplit     ActionID = "toggle_split"
	ActionCycleStatsMode  ActionID = "cycle_stats_mode"
	ActionNextProtocol    ActionID = "next_protocol"
	ActionRefresh         ActionID = "refresh"
	ActionCycleMethod     ActionID = "cycle_method"
	ActionSendReplay      ActionID = "send_replay"
	ActionToggleHelp      ActionID = "toggle_help"
)

type definition struct {
	id          ActionID
	description string
	defaults    [][]string
}

var definitions = []definition{
	{id: ActionQuit, description: "Quit", defaults: [][]string{{"ctrl+c"}, {"ctrl+q"}}},
	{id: ActionFocusQuery, description: "Edit query", defaults: [][]string{{"/"}}},
	{id: ActionCycleFocus, description: "Next pane", defaults: [][]string{{"tab"}}},
	{id: ActionCycleFocusBack, description: "Previous pane", defaults: [][]string{{"shift+tab"}}},
	{id: ActionNextTab, description: "Next entry tab", defaults: [][]string{{"]"}}},
	{id: ActionPrevTab, description: "Previous entry tab", defaults: [][]string{{"["}}},
	{id: ActionToggleFeed, description: "Pause or resume the feed", defaults: [][]string{{"p"}}},
	{id: ActionClearEntries, description: "Clear captured entries", defaults: [][]string{{"x"}}},
	{id: ActionCopyEntry, description: "Copy the visible entry tab", defaults: [][]string{{"y"}}},
	{id: ActionToggleSelectors, description: "Show row selectors", defaults: [][]string{{"s"}}},
	{id: ActionShowTraffic, description: "Traffic view", defaults: [][]string{{"g", "t"}}},
	{id: ActionShowStats, description: "Traffic statistics", defaults: [][]string{{"g", "s"}}},
	{id: ActionShowOAS, description: "OpenAPI catalogue", defaults: [][]string{{"g", "o"}}},
	{id: ActionShowReplay, description: "Replay selected entry", defaults: [][]string{{"g", "r"}}},
	{id: ActionShowHistory, description: "Query history", defaults: [][]string{{"g", "h"}}},
	{id: ActionToggleSplit, description: "Toggle split orientation", defaults: [][]string{{"g", "l"}}},
	{id: ActionCycleStatsMode, description: "Requests or volume", defaults: [][]string{{"m"}}},
	{id: ActionNextProtocol, description: "Next protocol filter", defaults: [][]string{{"n"}}},
	{id: ActionRefresh, description: "Refresh view", defaults: [][]string{{"ctrl+r"}}},
	{id: ActionCycleMethod, description: "Cycle replay method", defaults: [][]string{{"ctrl+t"}}},
	{id: ActionSendReplay, description: "Send replay", defaults: [][]string{{"ctrl+s"}}},
	{id: ActionToggleHelp, description: "Help", defaults: [][]string{{"shift+/"}}},
}

var definitionLookup = func() map[ActionID]definition {
	out := make(map[ActionID]definition, len(definitions))
	for _, def := range definitions {
		out[def.id] = def
	}
	return out
}()

// Describe returns the help text of an action.
func Describe(id ActionID) string {
	return definitionLookup[id].description
}

type HelpLine struct {
	Keys        string
	Description string
}

// Help lists every action in declaration order with its current keys.
func (m *Map) Help() []HelpLine {
	out := make([]HelpLine, 0, len(definitions))
	for _, def := range definitions {
		var keys []string
		for _, b := range m.Bindings(def.id) {
			keys = append(keys, strings.Join(b.Steps, " "))
		}
		if len(keys) == 0 {
			continue
		}
		out = append(out, HelpLine{Keys: strings.Join(keys, ", "), Description: def.description})
	}
	return out
}
