// Package step wraps a body with Gradle/JDK environment overrides and turns
// the asynchronous build it launches into a single pass/fail outcome.
//
// All execution paths (CLI run, tests) route through Execution:
//
//  1. reject a missing body before anything else happens,
//  2. resolve the configured Gradle and JDK installations,
//  3. run the body with the overlay and console annotator installed,
//  4. watch the log tail exactly once, whichever way the body ended,
//  5. report the outcome once through the Reporter.
package step
