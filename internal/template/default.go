package template

// DefaultTemplate is the built-in follow-up instruction message sent to the
// agent when an iteration fires. The message is data: the tracker itself
// performs no CI polling and no review processing, it only asks the agent to.
const DefaultTemplate = `Follow-up for session {{session}} (iteration {{iteration}} of {{max}}):

Your last push updated PR #{{pr}} ({{url}}). Continue the review loop:

1. Wait for CI to finish on PR #{{pr}}. Poll the check rollup; give up after
   {{ci_timeout}} and report which checks are still pending.
2. Review bots can lag behind pushes. Wait until at least {{settle}} has
   passed since the last commit before trusting that review comments have
   landed.
3. Fetch unresolved review threads on PR #{{pr}} and address each one:
   fix the code or reply with reasoning, then resolve the thread.
4. If CI failed, read the failing check logs and fix the failures first.
5. Push your changes. Do not merge the PR.
{{hooks}}`
