package sqlinline

const QCreateGenerationSteps = `--sql 584180ac-6367-49e2-8ef6-c2f9320300e7
create table if not exists generation_steps (
  id             uuid primary key default gen_random_uuid(),
  run_id         uuid not null,
  asset          text not null,
  asset_group    text not null,
  stage          text not null,
  outcome        text not null,
  task_id        text not null default '',
  result_url     text not null default '',
  error_category text not null default '',
  error_message  text not null default '',
  duration_ms    bigint not null default 0,
  properties     jsonb not null default '{}'::jsonb,
  created_at     timestamptz not null default now()
);
`

const QCreateGenerationStepsRunIndex = `--sql 463a3551-6d7f-404c-a053-29a254c751c3
create index if not exists generation_steps_run_idx
  on generation_steps (run_id, created_at);
`

const QInsertGenerationStep = `--sql f641be89-d628-45f5-8d64-3195f30605af
insert into generation_steps(
  run_id,
  asset,
  asset_group,
  stage,
  outcome,
  task_id,
  result_url,
  error_category,
  error_message,
  duration_ms,
  properties
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::text,
  $10::bigint,
  coalesce($11::jsonb, '{}'::jsonb)
);
`

const QListGenerationStepsByRun = `--sql 43f0af30-6d09-4d4a-a1bc-8c51d9ac101b
select
  asset,
  asset_group,
  stage,
  outcome,
  task_id,
  result_url,
  error_category,
  error_message,
  duration_ms,
  created_at
from generation_steps
where run_id = $1::uuid
order by created_at asc, id asc;
`
