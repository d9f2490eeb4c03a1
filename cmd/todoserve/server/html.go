package server

// TodoPage is a self-contained TodoMVC application. It implements the markup
// contract the scenarios depend on: section.todoapp, .new-todo committing on
// Enter, one .todo-list li per item with an input.toggle, .main and .footer
// hidden while the list is empty, and a .todo-count reading
// "<N> item left" / "<N> items left". Items persist in localStorage.
const TodoPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>TodoMVC</title>
    <style>
        body {
            font: 14px 'Helvetica Neue', Helvetica, Arial, sans-serif;
            background: #f5f5f5;
            color: #4d4d4d;
            max-width: 550px;
            margin: 0 auto;
        }
        .hidden { display: none; }
        .todoapp { background: #fff; margin: 130px 0 40px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.2); }
        .todoapp h1 { position: absolute; top: 20px; width: 550px; font-size: 80px; text-align: center; color: rgba(175,47,47,0.15); }
        .new-todo { width: 100%; box-sizing: border-box; padding: 16px 16px 16px 60px; font-size: 24px; border: none; }
        .todo-list { margin: 0; padding: 0; list-style: none; }
        .todo-list li { position: relative; font-size: 24px; border-bottom: 1px solid #ededed; padding: 15px; }
        .todo-list li.completed label { color: #d9d9d9; text-decoration: line-through; }
        .footer { color: #777; padding: 10px 15px; height: 20px; border-top: 1px solid #e6e6e6; }
        .todo-count { float: left; }
        .clear-completed { float: right; border: none; background: none; cursor: pointer; }
    </style>
</head>
<body>
    <section class="todoapp">
        <header class="header">
            <h1>todos</h1>
            <input class="new-todo" placeholder="What needs to be done?" autofocus>
        </header>
        <section class="main hidden">
            <ul class="todo-list"></ul>
        </section>
        <footer class="footer hidden">
            <span class="todo-count"></span>
            <button class="clear-completed">Clear completed</button>
        </footer>
    </section>
    <script>
        (function () {
            var STORAGE_KEY = 'todos-vanillajs';
            var todos = [];
            try {
                todos = JSON.parse(localStorage.getItem(STORAGE_KEY) || '[]');
            } catch (e) {
                todos = [];
            }

            var input = document.querySelector('.new-todo');
            var main = document.querySelector('.main');
            var footer = document.querySelector('.footer');
            var list = document.querySelector('.todo-list');
            var count = document.querySelector('.todo-count');

            function save() {
                localStorage.setItem(STORAGE_KEY, JSON.stringify(todos));
            }

            function render() {
                list.innerHTML = '';
                todos.forEach(function (todo, i) {
                    var li = document.createElement('li');
                    if (todo.completed) {
                        li.className = 'completed';
                    }
                    var toggle = document.createElement('input');
                    toggle.className = 'toggle';
                    toggle.type = 'checkbox';
                    toggle.checked = todo.completed;
                    toggle.addEventListener('change', function () {
                        todos[i].completed = toggle.checked;
                        save();
                        render();
                    });
                    var label = document.createElement('label');
                    label.textContent = todo.title;
                    li.appendChild(toggle);
                    li.appendChild(label);
                    list.appendChild(li);
                });

                var empty = todos.length === 0;
                main.classList.toggle('hidden', empty);
                footer.classList.toggle('hidden', empty);

                var left = todos.filter(function (t) { return !t.completed; }).length;
                count.innerHTML = '<strong>' + left + '</strong> ' + (left === 1 ? 'item' : 'items') + ' left';
            }

            input.addEventListener('keydown', function (e) {
                if (e.key !== 'Enter') {
                    return;
                }
                var title = input.value.trim();
                if (title === '') {
                    return;
                }
                todos.push({ title: title, completed: false });
                input.value = '';
                save();
                render();
            });

            document.querySelector('.clear-completed').addEventListener('click', function () {
                todos = todos.filter(function (t) { return !t.completed; });
                save();
                render();
            });

            render();
        })();
    </script>
</body>
</html>
`
