/*
Package scheduler provides named interval jobs for the task engine.

It wraps robfig/cron with a name-keyed job table so the task manager can
address jobs by task name. Each job carries two guarantees:

  - At most one invocation of a job runs at a time. A tick that becomes due
    while the previous invocation is still running is skipped, not queued
    (cron's SkipIfStillRunning chain).
  - Distinct jobs run in parallel; the scheduler imposes no ordering across
    jobs.

Jobs can be rescheduled to a new period at any time; the next fire is then
one full period from the moment of the reschedule. Pausing removes the
underlying cron entry but keeps the job record, so the name stays reserved
and the period survives until resume.

The scheduler never retries a failing job function. Recovering from provider
or action failures is the task's concern.
*/
package scheduler
