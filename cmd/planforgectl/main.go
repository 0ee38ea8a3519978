package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
)

var (
	app       = kingpin.New("planforgectl", "Command line client for the planforge server")
	serverURL = app.Flag("server", "Server base URL").Default("http://localhost:3200").Envar("PLANFORGE_SERVER").String()
	apiKey    = app.Flag("api-key", "API key").Envar("PLANFORGE_API_KEY").String()

	// Agent commands
	agentCmd = app.Command("agent", "Agent management commands")

	agentCreateCmd  = agentCmd.Command("create", "Create a new agent")
	agentCreateName = agentCreateCmd.Arg("name", "Agent name").Required().String()
	agentCreateType = agentCreateCmd.Flag("type", "Agent type").Default("task-executor").String()
	agentCreateDesc = agentCreateCmd.Flag("description", "Agent description").String()

	agentListCmd = agentCmd.Command("list", "List all agents")

	agentGetCmd = agentCmd.Command("get", "Show agent details")
	agentGetID  = agentGetCmd.Arg("id", "Agent ID").Required().String()

	agentDeleteCmd = agentCmd.Command("delete", "Delete an agent")
	agentDeleteID  = agentDeleteCmd.Arg("id", "Agent ID").Required().String()

	// Task commands
	taskCmd = app.Command("task", "Task management commands")

	taskCreateCmd   = taskCmd.Command("create", "Create a new task")
	taskCreateTitle = taskCreateCmd.Arg("title", "Task title").Required().String()
	taskCreatePlan  = taskCreateCmd.Flag("plan", "Plan ID").Required().String()
	taskCreatePrio  = taskCreateCmd.Flag("priority", "Task priority").Default("medium").String()

	taskListCmd  = taskCmd.Command("list", "List tasks")
	taskListPlan = taskListCmd.Flag("plan", "Filter by plan ID").String()

	// Workflow commands
	assignCmd     = app.Command("assign", "Assign a task to an agent")
	assignTaskID  = assignCmd.Arg("task", "Task ID").Required().String()
	assignAgentID = assignCmd.Arg("agent", "Agent ID").Required().String()

	unassignCmd     = app.Command("unassign", "Unassign a task from an agent")
	unassignTaskID  = unassignCmd.Arg("task", "Task ID").Required().String()
	unassignAgentID = unassignCmd.Arg("agent", "Agent ID").Required().String()

	startCmd     = app.Command("start", "Advance simulated work on a task")
	startTaskID  = startCmd.Arg("task", "Task ID").Required().String()
	startAgentID = startCmd.Arg("agent", "Agent ID").Required().String()

	progressCmd     = app.Command("progress", "Set task progress manually")
	progressTaskID  = progressCmd.Arg("task", "Task ID").Required().String()
	progressAgentID = progressCmd.Arg("agent", "Agent ID").Required().String()
	progressValue   = progressCmd.Arg("percentage", "Progress percentage").Required().Int()
	progressNote    = progressCmd.Flag("note", "Progress note").String()

	completeCmd     = app.Command("complete", "Complete a task")
	completeTaskID  = completeCmd.Arg("task", "Task ID").Required().String()
	completeAgentID = completeCmd.Arg("agent", "Agent ID").Required().String()

	pauseCmd     = app.Command("pause", "Pause a task")
	pauseTaskID  = pauseCmd.Arg("task", "Task ID").Required().String()
	pauseAgentID = pauseCmd.Arg("agent", "Agent ID").Required().String()
	pauseReason  = pauseCmd.Flag("reason", "Pause reason").String()

	statusCmd = app.Command("status", "Show the analytics snapshot")
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	ctx := context.Background()
	client := NewClient(*serverURL, *apiKey)

	var err error
	switch command {
	case agentCreateCmd.FullCommand():
		err = handleAgentCreate(ctx, client)
	case agentListCmd.FullCommand():
		err = handleAgentList(ctx, client)
	case agentGetCmd.FullCommand():
		err = handleAgentGet(ctx, client)
	case agentDeleteCmd.FullCommand():
		err = handleAgentDelete(ctx, client)
	case taskCreateCmd.FullCommand():
		err = handleTaskCreate(ctx, client)
	case taskListCmd.FullCommand():
		err = handleTaskList(ctx, client)
	case assignCmd.FullCommand():
		err = handleCommand(ctx, client, "assign-task", *assignTaskID, *assignAgentID, nil, "", "")
	case unassignCmd.FullCommand():
		err = handleCommand(ctx, client, "unassign-task", *unassignTaskID, *unassignAgentID, nil, "", "")
	case startCmd.FullCommand():
		err = handleCommand(ctx, client, "start-work", *startTaskID, *startAgentID, nil, "", "")
	case progressCmd.FullCommand():
		err = handleCommand(ctx, client, "update-progress", *progressTaskID, *progressAgentID, progressValue, *progressNote, "")
	case completeCmd.FullCommand():
		err = handleCommand(ctx, client, "complete-task", *completeTaskID, *completeAgentID, nil, "", "")
	case pauseCmd.FullCommand():
		err = handleCommand(ctx, client, "pause-task", *pauseTaskID, *pauseAgentID, nil, "", *pauseReason)
	case statusCmd.FullCommand():
		err = handleStatus(ctx, client)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

type agentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Performance struct {
		TasksCompleted   int     `json:"tasksCompleted"`
		TotalHoursWorked float64 `json:"totalHoursWorked"`
		EfficiencyScore  float64 `json:"efficiencyScore"`
	} `json:"performance"`
	AssignedTasks []string `json:"assignedTasks"`
}

type taskView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	PlanID   string `json:"planId"`
	Workflow struct {
		ProgressPercentage int    `json:"progressPercentage"`
		AIResponse         string `json:"aiResponse"`
	} `json:"agentWorkflow"`
}

func statusColor(status string) string {
	switch status {
	case "completed", "active", "idle":
		return green(status)
	case "busy", "in-progress":
		return yellow(status)
	case "blocked", "offline", "cancelled":
		return red(status)
	default:
		return status
	}
}

func handleAgentCreate(ctx context.Context, client *Client) error {
	var resp struct {
		Agent agentView `json:"agent"`
	}
	err := client.Post(ctx, "/api/agents", map[string]any{
		"name":        *agentCreateName,
		"type":        *agentCreateType,
		"description": *agentCreateDesc,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("Created agent %s (%s)\n", bold(resp.Agent.Name), cyan(resp.Agent.ID))
	return nil
}

func handleAgentList(ctx context.Context, client *Client) error {
	var resp struct {
		Agents []agentView `json:"agents"`
		Total  int         `json:"total"`
	}
	if err := client.Get(ctx, "/api/agents", nil, &resp); err != nil {
		return err
	}
	for _, a := range resp.Agents {
		fmt.Printf("%s  %-24s %-14s %s  tasks=%d done=%d\n",
			cyan(a.ID), a.Name, a.Type, statusColor(a.Status), len(a.AssignedTasks), a.Performance.TasksCompleted)
	}
	fmt.Printf("%d agents\n", resp.Total)
	return nil
}

func handleAgentGet(ctx context.Context, client *Client) error {
	var resp struct {
		Agent agentView `json:"agent"`
	}
	if err := client.Get(ctx, "/api/agents/"+*agentGetID, nil, &resp); err != nil {
		return err
	}
	a := resp.Agent
	fmt.Printf("%s %s\n", bold(a.Name), cyan(a.ID))
	fmt.Printf("  type:       %s\n", a.Type)
	fmt.Printf("  status:     %s\n", statusColor(a.Status))
	fmt.Printf("  tasks:      %d assigned, %d completed\n", len(a.AssignedTasks), a.Performance.TasksCompleted)
	fmt.Printf("  hours:      %.1f\n", a.Performance.TotalHoursWorked)
	fmt.Printf("  efficiency: %.0f\n", a.Performance.EfficiencyScore)
	return nil
}

func handleAgentDelete(ctx context.Context, client *Client) error {
	if err := client.Delete(ctx, "/api/agents/"+*agentDeleteID, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted agent %s\n", cyan(*agentDeleteID))
	return nil
}

func handleTaskCreate(ctx context.Context, client *Client) error {
	var resp struct {
		Task taskView `json:"task"`
	}
	err := client.Post(ctx, "/api/tasks", map[string]any{
		"title":    *taskCreateTitle,
		"planId":   *taskCreatePlan,
		"priority": *taskCreatePrio,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %s (%s)\n", bold(resp.Task.Title), cyan(resp.Task.ID))
	return nil
}

func handleTaskList(ctx context.Context, client *Client) error {
	var resp struct {
		Tasks []taskView `json:"tasks"`
		Total int        `json:"total"`
	}
	query := url.Values{}
	if *taskListPlan != "" {
		query.Set("planId", *taskListPlan)
	}
	if err := client.Get(ctx, "/api/tasks", query, &resp); err != nil {
		return err
	}
	for _, t := range resp.Tasks {
		fmt.Printf("%s  %-40s %-12s %-8s %3d%%\n",
			cyan(t.ID), t.Title, statusColor(t.Status), t.Priority, t.Workflow.ProgressPercentage)
	}
	fmt.Printf("%d tasks\n", resp.Total)
	return nil
}

func handleCommand(ctx context.Context, client *Client, action, taskID, agentID string, progress *int, note, reason string) error {
	body := map[string]any{
		"action":  action,
		"taskId":  taskID,
		"agentId": agentID,
	}
	if progress != nil {
		body["progress"] = *progress
	}
	if note != "" {
		body["note"] = note
	}
	if reason != "" {
		body["reason"] = reason
	}

	var resp struct {
		Task  *taskView  `json:"task"`
		Agent *agentView `json:"agent"`
	}
	if err := client.Post(ctx, "/api/workflow", body, &resp); err != nil {
		return err
	}
	if resp.Task != nil {
		t := resp.Task
		fmt.Printf("%s %s  %s  %s\n",
			green("ok"), cyan(t.ID), statusColor(t.Status), strconv.Itoa(t.Workflow.ProgressPercentage)+"%")
		if t.Workflow.AIResponse != "" {
			fmt.Printf("  %s\n", t.Workflow.AIResponse)
		}
	} else {
		fmt.Println(green("ok"))
	}
	return nil
}

func handleStatus(ctx context.Context, client *Client) error {
	var snap struct {
		TotalAgents       int     `json:"totalAgents"`
		ActiveAgents      int     `json:"activeAgents"`
		TotalTasks        int     `json:"totalTasks"`
		AssignedTasks     int     `json:"assignedTasks"`
		CompletedTasks    int     `json:"completedTasks"`
		InProgressTasks   int     `json:"inProgressTasks"`
		CompletionRate    float64 `json:"completionRate"`
		TotalHoursWorked  float64 `json:"totalHoursWorked"`
		AverageEfficiency float64 `json:"averageEfficiency"`
		AgentWorkloads    []struct {
			AgentID        string  `json:"agentId"`
			AgentName      string  `json:"agentName"`
			CurrentTasks   int     `json:"currentTasks"`
			CompletedTasks int     `json:"completedTasks"`
			Efficiency     float64 `json:"efficiency"`
			Status         string  `json:"status"`
		} `json:"agentWorkloads"`
	}
	if err := client.Get(ctx, "/api/analytics/agents", nil, &snap); err != nil {
		return err
	}
	fmt.Printf("%s\n", bold("Agents"))
	fmt.Printf("  total: %d  active: %d\n", snap.TotalAgents, snap.ActiveAgents)
	fmt.Printf("%s\n", bold("Tasks"))
	fmt.Printf("  total: %d  assigned: %d  in progress: %d  completed: %d (%.0f%%)\n",
		snap.TotalTasks, snap.AssignedTasks, snap.InProgressTasks, snap.CompletedTasks, snap.CompletionRate)
	fmt.Printf("  hours worked: %.1f  avg efficiency: %.0f\n", snap.TotalHoursWorked, snap.AverageEfficiency)
	if len(snap.AgentWorkloads) > 0 {
		fmt.Printf("%s\n", bold("Workloads"))
		for _, w := range snap.AgentWorkloads {
			fmt.Printf("  %s  %-24s %s  current=%d done=%d eff=%.0f\n",
				cyan(w.AgentID), w.AgentName, statusColor(w.Status), w.CurrentTasks, w.CompletedTasks, w.Efficiency)
		}
	}
	return nil
}
