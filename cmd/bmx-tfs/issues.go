package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exova-dev/bmx-tfs/internal/model"
)

// issuesCmd groups the work-item operations.
var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Query and update TFS work items",
}

// issuesListCmd lists the work items for a release.
var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items for a release",
	Long: `List work items, optionally filtered by release number and category.

The release filter requires a custom release field to be configured
(issues.custom_release_field). The category filter narrows by
collection, project, and area path; unset levels are unrestricted.`,
	RunE: runIssuesList,
}

// issuesCloseCmd transitions a work item to Closed.
var issuesCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Transition a work item to the Closed state",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssuesClose,
}

// issuesCommentCmd appends text to a work item description.
var issuesCommentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Append text to a work item's description",
	Args:  cobra.ExactArgs(2),
	RunE:  runIssuesComment,
}

// issuesSetStatusCmd sets a work item's state field.
var issuesSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Short: "Set a work item's state field",
	Args:  cobra.ExactArgs(2),
	RunE:  runIssuesSetStatus,
}

// issuesURLCmd prints the web editor link for a work item.
var issuesURLCmd = &cobra.Command{
	Use:   "url <id>",
	Short: "Print the web editor link for a work item",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssuesURL,
}

func init() {
	issuesListCmd.Flags().String("release", "", "Release number to filter by")
	issuesListCmd.Flags().String("collection", "", "Collection to query (overrides config)")
	issuesListCmd.Flags().String("project", "", "Project to filter by (overrides config)")
	issuesListCmd.Flags().String("area-path", "", "Area path to filter under (overrides config)")

	issuesCmd.AddCommand(issuesListCmd)
	issuesCmd.AddCommand(issuesCloseCmd)
	issuesCmd.AddCommand(issuesCommentCmd)
	issuesCmd.AddCommand(issuesSetStatusCmd)
	issuesCmd.AddCommand(issuesURLCmd)
	rootCmd.AddCommand(issuesCmd)
}

func runIssuesList(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	release, _ := cmd.Flags().GetString("release")

	filter := cfg.Issues.Filter
	if v, _ := cmd.Flags().GetString("collection"); v != "" {
		filter.Collection = v
	}
	if v, _ := cmd.Flags().GetString("project"); v != "" {
		filter.Project = v
	}
	if v, _ := cmd.Flags().GetString("area-path"); v != "" {
		filter.AreaPath = v
	}

	issues, err := adapter.ListIssues(cmd.Context(), release, filter)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		fmt.Println(dimStyle.Render("no matching work items"))
		return nil
	}

	for _, issue := range issues {
		status := issue.Status
		if adapter.IsClosed(issue) {
			status = successStyle.Render(status)
		}

		fmt.Printf("%s  %s  %s\n",
			idStyle.Render("#"+issue.ID), status, issue.Title)
		if issue.AreaPath != "" {
			fmt.Println("    " + dimStyle.Render(issue.AreaPath))
		}
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d work item(s)", len(issues))))

	return nil
}

func runIssuesClose(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	if err := adapter.CloseIssue(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("closed ") + "#" + args[0])
	return nil
}

func runIssuesComment(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	text := strings.TrimSpace(args[1])
	if text == "" {
		return fmt.Errorf("comment text is empty")
	}

	if err := adapter.AppendDescription(cmd.Context(), args[0], text); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("updated ") + "#" + args[0])
	return nil
}

func runIssuesSetStatus(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	if err := adapter.ChangeStatus(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("%s#%s -> %s\n", successStyle.Render("updated "), args[0], args[1])
	return nil
}

func runIssuesURL(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	url, err := adapter.IssueURL(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Println(url)
	return nil
}

// categoriesCmd prints the collection/project hierarchy.
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the collection/project hierarchy",
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	categories, err := adapter.ListCategories(cmd.Context())
	if err != nil {
		return err
	}

	for _, root := range categories {
		fmt.Println(headerStyle.Render(root.Name))
		printChildren(root.Children, "  ")
	}

	return nil
}

// printChildren renders a category subtree with indentation.
func printChildren(children []model.Category, indent string) {
	for _, child := range children {
		fmt.Println(indent + child.Name)
		printChildren(child.Children, indent+"  ")
	}
}
