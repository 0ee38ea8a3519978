package workflow

import (
	"fmt"

	"github.com/planforge/planforge/internal/agent"
	"github.com/planforge/planforge/internal/task"
)

// responseFor builds the display-only status string shown in the task's
// workflow panel. Three phases per agent type: early (<30%), mid (<80%)
// and done. The numbers are cosmetic, drawn from the progress source.
func (e *Engine) responseFor(agentType agent.Type, t *task.Task, progress int) string {
	switch phase(progress) {
	case 0:
		return e.earlyResponse(agentType, t, progress)
	case 1:
		return e.midResponse(agentType, t, progress)
	default:
		return doneResponse(agentType)
	}
}

func phase(progress int) int {
	switch {
	case progress < 30:
		return 0
	case progress < 80:
		return 1
	default:
		return 2
	}
}

func (e *Engine) earlyResponse(agentType agent.Type, t *task.Task, progress int) string {
	switch agentType {
	case agent.TypeCodeReviewer:
		return fmt.Sprintf("🔍 Code review in progress... Analyzed %d%% of the codebase. Found %d potential improvements.", progress, e.source.Roll(5))
	case agent.TypeTaskExecutor:
		return fmt.Sprintf("⚡ Executing task: %s. Progress: %d%% complete.", t.Title, progress)
	case agent.TypeBugFixer:
		return fmt.Sprintf("🐛 Investigating bug report... Located issue in %d files.", e.source.Roll(5))
	case agent.TypeDocumentation:
		return fmt.Sprintf("📚 Writing documentation... %d%% complete.", progress)
	case agent.TypeTesting:
		return fmt.Sprintf("🧪 Running test suite... %d tests executed.", e.source.Roll(50))
	default:
		return fmt.Sprintf("🤖 Processing custom task: %s...", t.Title)
	}
}

func (e *Engine) midResponse(agentType agent.Type, t *task.Task, progress int) string {
	switch agentType {
	case agent.TypeCodeReviewer:
		return fmt.Sprintf("📝 Reviewing pull request #%d. Identified %d security concerns.", e.source.Roll(1000), e.source.Roll(3))
	case agent.TypeTaskExecutor:
		return fmt.Sprintf("🔄 Working on implementation... %d files modified.", e.source.Roll(10))
	case agent.TypeBugFixer:
		return fmt.Sprintf("🔧 Applying fix... Testing %d scenarios.", e.source.Roll(10))
	case agent.TypeDocumentation:
		return "📖 Updating API docs and user guides..."
	case agent.TypeTesting:
		return fmt.Sprintf("🔍 Analyzing test results... Coverage: %d%%", e.source.Roll(20)+80)
	default:
		return "⚙️ Executing specialized workflow..."
	}
}

func doneResponse(agentType agent.Type) string {
	switch agentType {
	case agent.TypeCodeReviewer:
		return "✅ Code review completed! All critical issues addressed. Ready for merge."
	case agent.TypeTaskExecutor:
		return "🎯 Task execution completed successfully! All requirements met."
	case agent.TypeBugFixer:
		return "✅ Bug fixed and verified! All tests passing."
	case agent.TypeDocumentation:
		return "📋 Documentation completed! All sections updated."
	case agent.TypeTesting:
		return "✅ All tests passing! Quality assurance complete."
	default:
		return "✨ Custom task completed with enhanced results!"
	}
}
