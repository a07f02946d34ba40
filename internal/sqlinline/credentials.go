package sqlinline

const QCreateServiceCredentials = `--sql a4e86f53-f0eb-4fdc-96df-526751e28708
create table if not exists service_credentials (
  provider   text primary key,
  token      text not null,
  properties jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const QSelectServiceCredential = `--sql 8260fc20-e9e4-4226-a0d4-61e7d35f0f30
select token
from service_credentials
where provider = $1::text
limit 1;
`

const QUpsertServiceCredential = `--sql bfe66f76-d8ea-4268-8d2b-d17e3b38bc11
insert into service_credentials (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
  token = excluded.token,
  properties = excluded.properties,
  updated_at = now();
`
