package scenario

// Selectors the TodoMVC scenarios rely on. They form the compatibility
// contract with the application under test.
const (
	SelectorApp      = "section.todoapp"
	SelectorMain     = ".main"
	SelectorFooter   = ".footer"
	SelectorNewTodo  = ".new-todo"
	SelectorTodoItem = ".todo-list li"
	SelectorToggle   = "input.toggle"
	SelectorCount    = ".todo-count"
)

// Scripts evaluated by the TodoMVC scenarios.
const (
	ScriptTodoCount     = `document.querySelectorAll('.todo-list li').length`
	ScriptTodoCountText = `document.querySelector('.todo-count').textContent`
)

// TodoMVC returns the TodoMVC acceptance scenarios. New items are committed
// with an explicit Enter key press.
func TodoMVC() []Scenario {
	return []Scenario{
		{
			Name: "Loads the app",
			Steps: []Step{
				{Kind: StepNavigate},
				{Kind: StepSnapshot, Name: "Loads the app"},
				{Kind: StepExists, Selector: SelectorApp, Expect: true},
			},
		},
		{
			Name: "With no todos, hides main section and footer",
			Steps: []Step{
				{Kind: StepNavigate},
				{Kind: StepSnapshot, Name: "With no todos"},
				{Kind: StepVisible, Selector: SelectorMain, Expect: false},
				{Kind: StepVisible, Selector: SelectorFooter, Expect: false},
			},
		},
		{
			Name: "Accepts a new todo",
			Steps: []Step{
				{Kind: StepNavigate},
				{Kind: StepEvaluate, Script: ScriptTodoCount, Expect: 0},
				{Kind: StepType, Selector: SelectorNewTodo, Text: "New fancy todo"},
				{Kind: StepPress, Selector: SelectorNewTodo, Key: "Enter"},
				{Kind: StepWait, Selector: SelectorTodoItem},
				{Kind: StepSnapshot, Name: "Accepts a new todo"},
				{Kind: StepEvaluate, Script: ScriptTodoCount, Expect: 1},
			},
		},
		{
			Name: "Lets you check off a todo",
			Steps: []Step{
				{Kind: StepNavigate},
				{Kind: StepType, Selector: SelectorNewTodo, Text: "A thing to accomplish"},
				{Kind: StepPress, Selector: SelectorNewTodo, Key: "Enter"},
				{Kind: StepWait, Selector: SelectorTodoItem},
				{Kind: StepEvaluate, Script: ScriptTodoCountText, Expect: "1 item left"},
				{Kind: StepClick, Selector: SelectorToggle},
				{Kind: StepSnapshot, Name: "Lets you check off a todo"},
				{Kind: StepEvaluate, Script: ScriptTodoCountText, Expect: "0 items left"},
			},
		},
	}
}
