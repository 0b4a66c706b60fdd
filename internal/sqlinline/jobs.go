package sqlinline

const QInsertGenerationJob = `--sql 3f1c9a84-52b6-4e1d-9c0a-7be4d2a81f36
insert into generated_images (
    id,
    project_id,
    clothing_path,
    model_asset_id,
    prediction_id,
    status,
    result_path,
    error_message,
    created_at,
    updated_at
)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, '', '', now(), now())
returning created_at, updated_at;
`

const QSelectJobByID = `--sql b8d2f6e0-1a4c-4b7f-8e93-6c05a9d417c2
select id, project_id, clothing_path, model_asset_id, prediction_id, status, result_path, error_message, created_at, updated_at
from generated_images
where id = $1::uuid
limit 1;
`

const QSelectProcessingJobs = `--sql 9e47ab13-dc28-4f66-b1e5-02f38c6d9a54
select id, project_id, clothing_path, model_asset_id, prediction_id, status, result_path, error_message, created_at, updated_at
from generated_images
where status = 'Processing' and prediction_id <> ''
order by created_at asc
limit $1::int;
`

const QCompleteJob = `--sql 62d90c7f-35e1-48aa-9f2b-d84a6b10ce78
update generated_images
set status = 'Completed', result_path = $2::text, error_message = '', updated_at = now()
where id = $1::uuid and status = 'Processing';
`

const QFailJob = `--sql 07e6512d-9bf3-4d04-a6c1-e95f82473bae
update generated_images
set status = 'Failed', error_message = $2::text, updated_at = now()
where id = $1::uuid and status = 'Processing';
`

const QSelectProjectResults = `--sql 4ba1e8c6-70df-49b2-8d37-51c29e06fa13
select id, result_path
from generated_images
where project_id = $1::uuid and status = 'Completed' and result_path <> ''
order by created_at asc;
`
